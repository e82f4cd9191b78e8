package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Breaker wraps a hosted backend in a circuit breaker so a provider outage
// short-circuits instead of holding every message for the full timeout.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker trips after five consecutive provider failures and probes
// again after thirty seconds.
func NewBreaker(next Backend, logger zerolog.Logger) *Breaker {
	logger = logger.With().Str("module", "llm").Str("backend", next.Name()).Logger()
	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Callers going away says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Name reports the wrapped backend's name.
func (b *Breaker) Name() string { return b.next.Name() }

// JSONRequest defers to the wrapped backend's framing.
func (b *Breaker) JSONRequest(system, user string, maxTokens int) Request {
	return jsonRequest(b.next, system, user, maxTokens)
}

// Generate calls the wrapped backend unless the circuit is open.
func (b *Breaker) Generate(ctx context.Context, req Request) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &BackendError{Backend: b.Name(), Message: "circuit open", Err: err}
		}
		return "", err
	}
	return out.(string), nil
}
