package natsync

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const defaultTimeout = 5 * time.Second

// DefaultStream holds the records published by the companion device
const DefaultStream = "SUNSHINE_DATA"

// ensureStream creates the record stream when missing. Only the last
// record of each topic is kept, it is replayed to every new subscriber.
func ensureStream(ctx context.Context, js jetstream.JetStream, config Config) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              config.stream(),
		Description:       "Records synchronized with sunshinewear",
		Subjects:          []string{config.subjects()},
		MaxMsgsPerSubject: 1,
		Discard:           jetstream.DiscardOld,
	})
}

// withTimeout bounds ctx by timeout unless it already has a deadline
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
