package datasync

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/asset"
	"github.com/jitinsharma/sunshine-wear/internal/metrics"
	"github.com/jitinsharma/sunshine-wear/internal/weather"
	"github.com/sirupsen/logrus"
)

var ErrConnection = errors.New("peer connection failed")

const WeatherTopic = "weather"

type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Subscribed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	}
	return "unknown"
}

type Config struct {
	Topic   string
	Backoff BackoffConfig
	Loader  asset.LoaderConfig
}

func DefaultConfig() Config {
	return Config{
		Topic:   WeatherTopic,
		Backoff: DefaultBackoffConfig(),
		Loader:  asset.DefaultLoaderConfig(),
	}
}

// Channel keeps a subscription to the peer alive and publishes the latest weather snapshot
type Channel struct {
	transport Transport
	config    Config
	recorder  metrics.Recorder

	cell  weather.Cell
	state atomic.Int32

	// owned by the receive loop
	seq uint64

	lock   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannel(transport Transport, config Config, recorder metrics.Recorder) *Channel {
	if config.Topic == "" {
		config.Topic = WeatherTopic
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	channel := &Channel{
		transport: transport,
		config:    config,
		recorder:  recorder,
	}
	channel.setState(Disconnected)
	return channel
}

// Latest returns the last published snapshot, nil until the first valid notification
func (c *Channel) Latest() *weather.Snapshot {
	return c.cell.Load()
}

func (c *Channel) State() ConnState {
	return ConnState(c.state.Load())
}

// Start launches the receive loop, calling it again while running does nothing
func (c *Channel) Start(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.cancel != nil {
		return
	}
	logrus.Infof("Start data sync channel on topic %s", c.config.Topic)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx, c.done)
}

// Stop cancels any in-flight fetch, closes the session and waits for the loop to exit
func (c *Channel) Stop() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.cancel == nil {
		return
	}
	logrus.Infof("Stop data sync channel")

	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

func (c *Channel) setState(state ConnState) {
	previous := ConnState(c.state.Swap(int32(state)))
	if previous != state {
		logrus.Debugf("Data sync channel: %s -> %s", previous, state)
	}
	c.recorder.SetConnectionState(state.String())
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setState(Disconnected)

	attempt := 0
	for {
		c.setState(Connecting)
		session, err := c.transport.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.recorder.IncReconnectAttempt()
			c.setState(Disconnected)

			delay := c.config.Backoff.Delay(attempt)
			logrus.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).Warnf("%v: %v", ErrConnection, err)

			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		c.setState(Subscribed)
		logrus.Infof("Subscribed to peer for topic %s", c.config.Topic)

		c.receive(ctx, session)

		if err := session.Close(); err != nil {
			logrus.Debugf("Unable to close session: %v", err)
		}
		c.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}
		if !sleep(ctx, c.config.Backoff.Delay(1)) {
			return
		}
	}
}

func sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Channel) receive(ctx context.Context, session Session) {
	supervisor := asset.NewSupervisor(asset.NewLoader(session, c.config.Loader))
	defer supervisor.CancelAll()

	notifications := session.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			logrus.Warnf("Peer lost: %v", session.Err())
			return
		case notification, ok := <-notifications:
			if !ok {
				logrus.Warnf("Peer closed the notification stream")
				return
			}
			c.handleNotification(notification, supervisor)
		case result := <-supervisor.Results():
			c.handleResult(result)
		}
	}
}

func (c *Channel) handleNotification(notification Notification, supervisor *asset.Supervisor) {
	if notification.Topic != c.config.Topic || notification.Kind != Changed {
		logrus.Debugf("Ignore notification on topic %q", notification.Topic)
		c.recorder.IncNotification(metrics.NotificationFiltered)
		return
	}

	fields, err := weather.DecodePayload(notification.Payload)
	if err != nil {
		logrus.Warnf("Drop weather notification: %v", err)
		c.recorder.IncNotification(metrics.NotificationDropped)
		return
	}

	c.seq++
	var snapshot *weather.Snapshot
	if notification.Icon == "" {
		supervisor.Cancel(c.config.Topic)
		snapshot = weather.NewSnapshot(fields, nil, weather.IconAbsent, c.seq, time.Now())
	} else {
		var previousIcon image.Image
		if previous := c.cell.Load(); previous != nil {
			previousIcon = previous.Icon()
		}
		snapshot = weather.NewSnapshot(fields, previousIcon, weather.IconPending, c.seq, time.Now())
	}
	c.cell.Store(snapshot)
	c.recorder.IncNotification(metrics.NotificationAccepted)

	logrus.WithFields(logrus.Fields{
		"seq":  c.seq,
		"high": fields.High,
		"low":  fields.Low,
		"time": fields.Time,
		"icon": notification.Icon,
	}).Infof("Weather updated")

	if notification.Icon != "" {
		supervisor.Submit(c.config.Topic, c.seq, notification.Icon)
	}
}

func (c *Channel) handleResult(result asset.Result) {
	current := c.cell.Load()
	if current == nil || result.Seq != c.seq || current.Seq() != c.seq {
		logrus.Debugf("Discard stale icon %s (seq %d)", result.Handle, result.Seq)
		c.recorder.IncAssetResult(metrics.AssetStale)
		return
	}

	if errors.Is(result.Err, asset.ErrCancelled) {
		return
	}
	if result.Err != nil {
		logrus.Warnf("Keep previous icon: %v", result.Err)
		c.recorder.IncAssetResult(metrics.AssetUnavailable)
		return
	}

	icon, err := weather.DecodeImage(result.Data)
	if err != nil {
		logrus.Warnf("%v", fmt.Errorf("icon %s: %w", result.Handle, err))
		c.cell.Store(current.WithIcon(nil, weather.IconAbsent))
		c.recorder.IncAssetResult(metrics.AssetAbsent)
		return
	}

	c.cell.Store(current.WithIcon(icon, weather.IconPresent))
	c.recorder.IncAssetResult(metrics.AssetPresent)
	logrus.Debugf("Icon %s resolved (seq %d)", result.Handle, result.Seq)
}
