package natsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// Publisher plays the companion device: it stores icons and pushes weather records
type Publisher struct {
	config Config
	conn   *nats.Conn
	js     jetstream.JetStream
}

func NewPublisher(config Config) (*Publisher, error) {
	conn, err := nats.Connect(config.URL, nats.Name("sunshinewear-push"), nats.Timeout(config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", config.URL, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to create JetStream context: %w", err)
	}
	return &Publisher{config: config, conn: conn, js: js}, nil
}

// Publish stores the icon (when given) then records the payload on <prefix>.<topic>.
// Without a deadline, ctx is bounded by the connect timeout.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, iconName string, icon []byte) error {
	ctx, cancel := withTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	msg := nats.NewMsg(p.config.SubjectPrefix + "." + topic)
	msg.Data = payload

	if iconName != "" {
		store, err := p.assetStore(ctx)
		if err != nil {
			return err
		}
		if _, err := store.PutBytes(ctx, iconName, icon); err != nil {
			return fmt.Errorf("unable to store icon %s: %w", iconName, err)
		}
		msg.Header.Set(IconHeader, iconName)
	}

	if _, err := ensureStream(ctx, p.js, p.config); err != nil {
		return fmt.Errorf("unable to open stream %s: %w", p.config.stream(), err)
	}
	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("unable to publish: %w", err)
	}
	logrus.Infof("Published %d bytes on %s (stream %s, seq %d)", len(payload), msg.Subject, ack.Stream, ack.Sequence)
	return nil
}

func (p *Publisher) assetStore(ctx context.Context) (jetstream.ObjectStore, error) {
	store, err := p.js.ObjectStore(ctx, p.config.AssetBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		logrus.Infof("Create asset bucket %s", p.config.AssetBucket)
		store, err = p.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      p.config.AssetBucket,
			Description: "Weather icons pushed to sunshinewear",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open asset bucket: %w", err)
	}
	return store, nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}
