package tts

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerRenderer fails fast while the wrapped renderer keeps erroring, so a
// provider outage does not hold a worker slot for every queued job.
type BreakerRenderer struct {
	next Renderer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerRenderer wraps next. The breaker opens after at least 3 calls in a
// 30s window fail at a 60% ratio and probes again after openFor.
func NewBreakerRenderer(next Renderer, openFor time.Duration) *BreakerRenderer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tts",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("Circuit breaker state changed")
		},
	})
	return &BreakerRenderer{next: next, cb: cb}
}

func (b *BreakerRenderer) Render(ctx context.Context, text, voice string) ([]byte, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Render(ctx, text, voice)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
