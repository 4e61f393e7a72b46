// Package resilience wraps the persistence layer's RecordKeeper,
// Depot and Backend with a sony/gobreaker circuit breaker, the way
// pkg/circuitbreaker wraps the fintech adapters it was written for.
// Idempotent reads get a single extra attempt on IOError, per
// spec.md 7 ("IOError triggers a single retry on the backend if
// idempotent; otherwise propagates"); Append and Write are never
// retried, since retrying a failed write risks a duplicate side
// effect.
package resilience

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/computeheavy/gonk/internal/domain/entities"
	"github.com/computeheavy/gonk/internal/domain/repositories"
	"github.com/computeheavy/gonk/pkg/circuitbreaker"
	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// Config tunes the breaker wrapping one backend.
type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultConfig trips after 5 consecutive storage failures and probes
// again after 30s, mirroring pkg/wrappers' fintech adapter defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Backend wraps a repositories.Backend so every dataset it opens
// returns a breaker-guarded RecordKeeper and Depot.
type Backend struct {
	inner  repositories.Backend
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBackend wraps inner with a circuit breaker built from cfg.
func NewBackend(inner repositories.Backend, cfg Config, logger *zap.Logger) *Backend {
	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxRequests:      cfg.MaxRequests,
		Interval:         cfg.Interval,
		Timeout:          cfg.Timeout,
		FailureThreshold: cfg.FailureThreshold,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("storage circuit breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Backend{inner: inner, cb: cb, logger: logger}
}

func (b *Backend) CreateDataset(ctx context.Context, name string) error {
	return b.cb.Call(func() error { return b.inner.CreateDataset(ctx, name) })
}

func (b *Backend) DatasetExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := retryIdempotent(b.cb, func() error {
		var innerErr error
		exists, innerErr = b.inner.DatasetExists(ctx, name)
		return innerErr
	})
	return exists, err
}

func (b *Backend) ListDatasets(ctx context.Context) ([]string, error) {
	var names []string
	err := retryIdempotent(b.cb, func() error {
		var innerErr error
		names, innerErr = b.inner.ListDatasets(ctx)
		return innerErr
	})
	return names, err
}

func (b *Backend) Open(ctx context.Context, name string) (repositories.RecordKeeper, repositories.Depot, repositories.State, error) {
	rk, depot, state, err := b.inner.Open(ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}
	return &recordKeeper{inner: rk, cb: b.cb}, &depotWrapper{inner: depot, cb: b.cb}, state, nil
}

func (b *Backend) Close() error {
	return b.inner.Close()
}

// recordKeeper wraps a repositories.RecordKeeper.
type recordKeeper struct {
	inner repositories.RecordKeeper
	cb    *circuitbreaker.CircuitBreaker
}

func (r *recordKeeper) Append(ctx context.Context, e entities.Event) (string, error) {
	var token string
	err := r.cb.Call(func() error {
		var innerErr error
		token, innerErr = r.inner.Append(ctx, e)
		return innerErr
	})
	return token, err
}

func (r *recordKeeper) At(ctx context.Context, seq int64) (entities.Event, error) {
	var e entities.Event
	err := retryIdempotent(r.cb, func() error {
		var innerErr error
		e, innerErr = r.inner.At(ctx, seq)
		return innerErr
	})
	return e, err
}

func (r *recordKeeper) Next(ctx context.Context, after *uuid.UUID, limit int) ([]entities.Event, error) {
	var events []entities.Event
	err := retryIdempotent(r.cb, func() error {
		var innerErr error
		events, innerErr = r.inner.Next(ctx, after, limit)
		return innerErr
	})
	return events, err
}

func (r *recordKeeper) Len(ctx context.Context) (int64, error) {
	var n int64
	err := retryIdempotent(r.cb, func() error {
		var innerErr error
		n, innerErr = r.inner.Len(ctx)
		return innerErr
	})
	return n, err
}

func (r *recordKeeper) Verify(ctx context.Context) (bool, int64, error) {
	var ok bool
	var bad int64
	err := retryIdempotent(r.cb, func() error {
		var innerErr error
		ok, bad, innerErr = r.inner.Verify(ctx)
		return innerErr
	})
	return ok, bad, err
}

// depotWrapper wraps a repositories.Depot.
type depotWrapper struct {
	inner repositories.Depot
	cb    *circuitbreaker.CircuitBreaker
}

func (d *depotWrapper) Write(ctx context.Context, id entities.VersionedID, data []byte, expectedDigest entities.Digest) error {
	return d.cb.Call(func() error { return d.inner.Write(ctx, id, data, expectedDigest) })
}

func (d *depotWrapper) Read(ctx context.Context, id entities.VersionedID) ([]byte, error) {
	var data []byte
	err := retryIdempotent(d.cb, func() error {
		var innerErr error
		data, innerErr = d.inner.Read(ctx, id)
		return innerErr
	})
	return data, err
}

func (d *depotWrapper) Exists(ctx context.Context, id entities.VersionedID) (bool, error) {
	var exists bool
	err := retryIdempotent(d.cb, func() error {
		var innerErr error
		exists, innerErr = d.inner.Exists(ctx, id)
		return innerErr
	})
	return exists, err
}

// retryIdempotent calls fn through cb, retrying exactly once more if
// the first attempt failed with an IOError-kind *errors.Error. A
// NotFoundError or any other kind propagates immediately: retrying
// those wastes a breaker slot on an outcome that won't change.
func retryIdempotent(cb *circuitbreaker.CircuitBreaker, fn func() error) error {
	err := cb.Call(fn)
	if err != nil && coreerrors.IsKind(err, coreerrors.KindIO) {
		err = cb.Call(fn)
	}
	return err
}
