package asset

import (
	"context"
	"sync"
)

// Result of one resolution, Seq identifies the notification that asked for it
type Result struct {
	Topic  string
	Seq    uint64
	Handle Handle
	Data   []byte
	Err    error
}

type task struct {
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor keeps at most one resolution in flight per topic.
// A submission supersedes the outstanding task of the same topic.
type Supervisor struct {
	lock    sync.Mutex
	loader  *Loader
	tasks   map[string]*task
	results chan Result
}

func NewSupervisor(loader *Loader) *Supervisor {
	return &Supervisor{
		loader:  loader,
		tasks:   make(map[string]*task),
		results: make(chan Result),
	}
}

// Results delivers completed resolutions, results of cancelled tasks are never sent
func (s *Supervisor) Results() <-chan Result {
	return s.results
}

// Submit cancels the topic's outstanding task, waits for it to exit, then starts a new one
func (s *Supervisor) Submit(topic string, seq uint64, handle Handle) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cancel(topic)

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{seq: seq, cancel: cancel, done: make(chan struct{})}
	s.tasks[topic] = t

	go func() {
		defer close(t.done)
		defer cancel()

		data, err := s.loader.Resolve(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		select {
		case s.results <- Result{Topic: topic, Seq: seq, Handle: handle, Data: data, Err: err}:
		case <-ctx.Done():
		}
	}()
}

// InFlight returns the sequence number of the outstanding task for topic
func (s *Supervisor) InFlight(topic string) (uint64, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	t, ok := s.tasks[topic]
	if !ok {
		return 0, false
	}
	select {
	case <-t.done:
		return 0, false
	default:
		return t.seq, true
	}
}

func (s *Supervisor) Cancel(topic string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cancel(topic)
}

// CancelAll cancels every outstanding task and waits for them to exit
func (s *Supervisor) CancelAll() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for topic := range s.tasks {
		s.cancel(topic)
	}
}

func (s *Supervisor) cancel(topic string) {
	t, ok := s.tasks[topic]
	if !ok {
		return
	}
	t.cancel()
	<-t.done
	delete(s.tasks, topic)
}
