package natsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jitinsharma/sunshine-wear/internal/asset"
	"github.com/jitinsharma/sunshine-wear/internal/datasync"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// Message headers carried next to the structured payload
const (
	IconHeader       = "Icon"
	ChangeTypeHeader = "Change-Type"
	ChangeDeleted    = "deleted"
)

var errNoAssetStore = errors.New("no asset store")

type Config struct {
	URL           string
	SubjectPrefix string
	// Stream keeping the last record per topic, DefaultStream when empty
	Stream         string
	AssetBucket    string
	ConnectTimeout time.Duration
}

func (c Config) stream() string {
	if c.Stream == "" {
		return DefaultStream
	}
	return c.Stream
}

func (c Config) subjects() string {
	return c.SubjectPrefix + ".>"
}

// Transport connects to the companion device through a NATS server.
// Reconnection is left to the data sync channel.
type Transport struct {
	config Config
}

func NewTransport(config Config) *Transport {
	return &Transport{config: config}
}

func (t *Transport) Connect(ctx context.Context) (datasync.Session, error) {
	s := &session{
		id:            uuid.NewString(),
		prefix:        t.config.SubjectPrefix,
		bucket:        t.config.AssetBucket,
		messages:      make(chan jetstream.Msg, 64),
		notifications: make(chan datasync.Notification),
		done:          make(chan struct{}),
	}

	conn, err := nats.Connect(t.config.URL,
		nats.Name("sunshinewear-"+s.id),
		nats.NoReconnect(),
		nats.Timeout(t.config.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.fail(fmt.Errorf("disconnected: %v", err))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			s.fail(errors.New("connection closed"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", t.config.URL, err)
	}
	s.conn = conn

	s.js, err = jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to create JetStream context: %w", err)
	}

	setupCtx, cancel := withTimeout(ctx, t.config.ConnectTimeout)
	defer cancel()

	if _, err := ensureStream(setupCtx, s.js, t.config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to open stream %s: %w", t.config.stream(), err)
	}

	// the last record of every topic is replayed first, then live changes follow
	consumer, err := s.js.OrderedConsumer(setupCtx, t.config.stream(), jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{t.config.subjects()},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to create consumer: %w", err)
	}
	s.consume, err = consumer.Consume(s.receive,
		jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
			logrus.Debugf("NATS session %s consumer: %v", s.id, err)
		}),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to subscribe: %w", err)
	}

	go s.forward()

	logrus.WithFields(logrus.Fields{
		"session": s.id,
		"url":     conn.ConnectedUrlRedacted(),
		"stream":  t.config.stream(),
		"subject": t.config.subjects(),
	}).Infof("NATS session opened")

	return s, nil
}

type session struct {
	id      string
	prefix  string
	bucket  string
	conn    *nats.Conn
	js      jetstream.JetStream
	consume jetstream.ConsumeContext

	// opened on first fetch, the companion may create the bucket later
	storeLock sync.Mutex
	store     jetstream.ObjectStore

	messages      chan jetstream.Msg
	notifications chan datasync.Notification

	lock      sync.Mutex
	err       error
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

func (s *session) fail(err error) {
	s.lock.Lock()
	if s.err == nil {
		s.err = err
	}
	s.lock.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// receive runs on the consumer goroutine
func (s *session) receive(msg jetstream.Msg) {
	select {
	case s.messages <- msg:
	case <-s.done:
	}
}

func (s *session) forward() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.messages:
			notification, ok := toNotification(s.prefix, msg.Subject(), msg.Data(), msg.Headers())
			if !ok {
				continue
			}
			select {
			case s.notifications <- notification:
			case <-s.done:
				return
			}
		}
	}
}

// toNotification maps <prefix>.<topic> messages, anything else is ignored
func toNotification(prefix string, subject string, data []byte, header nats.Header) (datasync.Notification, bool) {
	topic := strings.TrimPrefix(subject, prefix+".")
	if topic == subject || topic == "" {
		return datasync.Notification{}, false
	}

	notification := datasync.Notification{
		Topic:   topic,
		Kind:    datasync.Changed,
		Payload: data,
	}
	if header != nil {
		notification.Icon = asset.Handle(header.Get(IconHeader))
		if strings.EqualFold(header.Get(ChangeTypeHeader), ChangeDeleted) {
			notification.Kind = datasync.Deleted
		}
	}
	return notification, true
}

func (s *session) Notifications() <-chan datasync.Notification {
	return s.notifications
}

func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

func (s *session) Fetch(ctx context.Context, handle asset.Handle) ([]byte, error) {
	store, err := s.assetStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetBytes(ctx, string(handle))
}

// assetStore keeps the store once found, a missing bucket is looked up again on the next fetch
func (s *session) assetStore(ctx context.Context) (jetstream.ObjectStore, error) {
	s.storeLock.Lock()
	defer s.storeLock.Unlock()

	if s.store != nil {
		return s.store, nil
	}
	if s.js == nil || s.bucket == "" {
		return nil, errNoAssetStore
	}
	store, err := s.js.ObjectStore(ctx, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %v", errNoAssetStore, s.bucket, err)
	}
	s.store = store
	return store, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		logrus.Debugf("Close NATS session %s", s.id)
		if s.consume != nil {
			s.consume.Stop()
		}
		if s.conn != nil {
			s.conn.Close()
		}
		s.fail(errors.New("session closed"))
	})
	return nil
}
