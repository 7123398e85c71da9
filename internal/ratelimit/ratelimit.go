package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/models"
)

// Limiter enforces a minimum interval between dispatches to the same
// provider. Limits for different providers are independent. The limiter set
// is fixed at construction; providers without a configured interval are
// never delayed.
type Limiter struct {
	limiters map[models.ProviderID]*rate.Limiter
}

func New(intervals map[models.ProviderID]time.Duration) *Limiter {
	l := &Limiter{limiters: make(map[models.ProviderID]*rate.Limiter, len(intervals))}
	for id, iv := range intervals {
		if iv <= 0 {
			continue
		}
		l.limiters[id] = rate.NewLimiter(rate.Every(iv), 1)
	}
	return l
}

// FromCatalog uses each descriptor's MinInterval.
func FromCatalog(cat *catalog.Catalog) *Limiter {
	intervals := make(map[models.ProviderID]time.Duration)
	for _, d := range cat.All() {
		intervals[d.ID] = d.MinInterval
	}
	return New(intervals)
}

// Await blocks until a request to id may start, or ctx is done. On
// cancellation the reserved slot is released and ctx.Err() is returned.
func (l *Limiter) Await(ctx context.Context, id models.ProviderID) error {
	lim, ok := l.limiters[id]
	if !ok {
		return ctx.Err()
	}
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Interval returns the configured spacing for id.
func (l *Limiter) Interval(id models.ProviderID) time.Duration {
	lim, ok := l.limiters[id]
	if !ok {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(lim.Limit()))
}
