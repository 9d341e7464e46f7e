package datasync

import (
	"context"

	"github.com/jitinsharma/sunshine-wear/internal/asset"
)

type ChangeKind int

const (
	Changed ChangeKind = iota
	Deleted
)

// Notification is one change pushed by the peer
type Notification struct {
	Topic   string
	Kind    ChangeKind
	Payload []byte
	Icon    asset.Handle
}

// Transport opens subscriptions to the peer
type Transport interface {
	Connect(ctx context.Context) (Session, error)
}

// Session is one live subscription. Notifications are delivered in order.
// Done is closed when the peer is lost, Err then tells why.
type Session interface {
	asset.Fetcher
	Notifications() <-chan Notification
	Done() <-chan struct{}
	Err() error
	Close() error
}
