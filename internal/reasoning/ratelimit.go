package reasoning

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"factcheck/backend/internal/factcheck"
	"factcheck/backend/internal/prompt"
)

// RateLimited spaces calls to the wrapped invoker. It is shared by all
// requests so the upstream sees at most one call per interval.
type RateLimited struct {
	inner   Invoker
	limiter *rate.Limiter
}

// NewRateLimited returns inner unchanged when minInterval is not positive.
func NewRateLimited(inner Invoker, minInterval time.Duration) Invoker {
	if inner == nil || minInterval <= 0 {
		return inner
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (r *RateLimited) Invoke(ctx context.Context, req prompt.Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", factcheck.NewError(factcheck.ErrUpstreamUnavailable, "", err)
	}
	return r.inner.Invoke(ctx, req)
}
