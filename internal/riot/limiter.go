package riot

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Development key limits: 20 requests per second, 100 per two minutes.
	DefaultRequestsPerSecond     = 20
	DefaultRequestsPerTwoMinutes = 100

	longWindow = 2 * time.Minute
)

// Limiter gates outbound requests against the per-second and per-two-minute
// application windows before they are sent. A 429 can still happen (method
// limits, shared keys); the Requester handles that separately.
type Limiter struct {
	windows []*rate.Limiter
}

// NewLimiter creates a limiter. A non-positive value disables that window.
// The long window refills one request every longWindow/perTwoMinutes with
// no burst, so any two-minute span admits at most perTwoMinutes requests.
func NewLimiter(perSecond, perTwoMinutes int) *Limiter {
	l := &Limiter{}
	if perSecond > 0 {
		l.windows = append(l.windows, rate.NewLimiter(rate.Limit(perSecond), perSecond))
	}
	if perTwoMinutes > 0 {
		l.windows = append(l.windows, rate.NewLimiter(rate.Every(longWindow/time.Duration(perTwoMinutes)), 1))
	}
	return l
}

// Wait blocks until every window admits one request or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for _, w := range l.windows {
		if err := w.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return nil
}
