package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

type State struct {
	Running             bool
	NextDeadlineEpochMs int64
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = recorder
	}
}

// Scheduler is a repeating timer whose deadlines stay on the period grid
// even when single ticks are delivered late.
type Scheduler struct {
	period   time.Duration
	onTick   func(now time.Time)
	clock    clockwork.Clock
	recorder metrics.Recorder

	// serializes Start and Stop
	lifecycle sync.Mutex

	lock       sync.Mutex
	running    bool
	generation uint64
	deadline   time.Time
	timer      clockwork.Timer

	callback sync.Mutex
	inFlight sync.WaitGroup
	resyncs  atomic.Uint64
}

// New creates a stopped scheduler. onTick runs on the timer goroutine and
// must not call Stop.
func New(period time.Duration, onTick func(now time.Time), opts ...Option) *Scheduler {
	s := &Scheduler{
		period:   period,
		onTick:   onTick,
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.generation++

	now := s.clock.Now()
	s.deadline = firstDeadline(now, s.period)
	s.arm(now)
	logrus.Debugf("Start render scheduler, first tick at %s", s.deadline.Format("15:04:05.000"))
}

// Stop cancels the pending deadline and waits for a running callback to return
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.lock.Lock()
	if !s.running {
		s.lock.Unlock()
		return
	}
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.lock.Unlock()

	s.inFlight.Wait()
	logrus.Debugf("Stop render scheduler")
}

func (s *Scheduler) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.running {
		return State{}
	}
	return State{
		Running:             true,
		NextDeadlineEpochMs: s.deadline.UnixMilli(),
	}
}

// Resyncs counts ticks that were more than one period late
func (s *Scheduler) Resyncs() uint64 {
	return s.resyncs.Load()
}

// arm must be called with lock held
func (s *Scheduler) arm(now time.Time) {
	generation := s.generation
	s.timer = s.clock.AfterFunc(s.deadline.Sub(now), func() {
		s.fire(generation)
	})
}

func (s *Scheduler) fire(generation uint64) {
	s.lock.Lock()
	if !s.running || generation != s.generation {
		s.lock.Unlock()
		return
	}
	s.inFlight.Add(1)
	defer s.inFlight.Done()

	now := s.clock.Now()
	next, resync := nextDeadline(s.deadline, now, s.period)
	if resync {
		s.resyncs.Add(1)
		s.recorder.IncSchedulerResync()
		logrus.Debugf("Render tick %s late, resync", now.Sub(s.deadline))
	}
	s.deadline = next
	s.arm(now)
	s.lock.Unlock()

	s.callback.Lock()
	defer s.callback.Unlock()
	s.recorder.IncRenderTick()
	s.onTick(now)
}

// firstDeadline aligns the first tick on the next multiple of period
func firstDeadline(now time.Time, period time.Duration) time.Time {
	return now.Add(period - time.Duration(now.UnixNano()%int64(period)))
}

// nextDeadline keeps ticks on the previous deadline grid unless the tick
// fired more than one full period late, in which case it restarts from now.
func nextDeadline(previous time.Time, now time.Time, period time.Duration) (time.Time, bool) {
	if now.Sub(previous) > period {
		return now.Add(period), true
	}
	return previous.Add(period), false
}
