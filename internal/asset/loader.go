package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	ErrCancelled   = errors.New("asset fetch cancelled")
	ErrUnavailable = errors.New("asset unavailable")
)

// Handle references a binary blob held by the remote peer
type Handle string

// Fetcher retrieves the content behind a handle. Implementations must honor ctx.
type Fetcher interface {
	Fetch(ctx context.Context, handle Handle) ([]byte, error)
}

type FetcherFunc func(ctx context.Context, handle Handle) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, handle Handle) ([]byte, error) {
	return f(ctx, handle)
}

type LoaderConfig struct {
	// Timeout bounds a single fetch, 0 disables it
	Timeout time.Duration
	// BreakerFailures consecutive failures open the breaker, 0 disables it
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open
	BreakerCooldown time.Duration
}

func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Timeout:         10 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: 30 * time.Second,
	}
}

// Loader resolves handles away from the caller's goroutine
type Loader struct {
	fetcher Fetcher
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

func NewLoader(fetcher Fetcher, cfg LoaderConfig) *Loader {
	loader := &Loader{
		fetcher: fetcher,
		timeout: cfg.Timeout,
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		loader.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "asset",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				// A cancelled fetch says nothing about the remote side
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logrus.Warnf("Asset breaker %s: %s -> %s", name, from, to)
			},
		})
	}

	return loader
}

type fetchResult struct {
	data []byte
	err  error
}

// Resolve fetches the handle content.
// It returns ErrCancelled as soon as ctx is done and ErrUnavailable on any remote failure.
func (l *Loader) Resolve(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	fetchCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}

	// Buffered so the fetch goroutine never blocks once we stopped listening
	resultChannel := make(chan fetchResult, 1)
	go func() {
		defer cancel()
		data, err := l.fetch(fetchCtx, handle)
		resultChannel <- fetchResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case result := <-resultChannel:
		if result.err == nil {
			return result.data, nil
		}
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, handle, result.err)
	}
}

func (l *Loader) fetch(ctx context.Context, handle Handle) ([]byte, error) {
	if l.breaker == nil {
		return l.fetcher.Fetch(ctx, handle)
	}
	result, err := l.breaker.Execute(func() (interface{}, error) {
		return l.fetcher.Fetch(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
