package lock

import (
	"context"
	"errors"
	"log/slog"

	"contactlink/internal/contact/ports"
	"contactlink/pkg/platform/circuit"
	"contactlink/pkg/platform/sentinel"
)

// Breaker guards a shared Locker with a circuit breaker. Backend failures are
// surfaced until the circuit opens; while it is open, locks come from the
// fallback. With a shared store the fallback is Postgres, so replicas keep
// excluding each other. Contention is never counted as a backend failure.
type Breaker struct {
	primary  ports.Locker
	fallback ports.Locker
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewBreaker(primary, fallback ports.Locker, breaker *circuit.Breaker, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (b *Breaker) Lock(ctx context.Context, keys ...string) (func(), error) {
	unlock, err := b.primary.Lock(ctx, keys...)
	if err == nil {
		if _, change := b.breaker.RecordSuccess(); change.Closed {
			b.logger.InfoContext(ctx, "lock backend recovered", "breaker", b.breaker.Name())
		}
		return unlock, nil
	}
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return nil, err
	}

	useFallback, change := b.breaker.RecordFailure()
	if change.Opened {
		b.logger.WarnContext(ctx, "lock backend unavailable, using fallback lock",
			"breaker", b.breaker.Name(),
			"error", err.Error(),
		)
	}
	if !useFallback {
		return nil, err
	}
	return b.fallback.Lock(ctx, keys...)
}
