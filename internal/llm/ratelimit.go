package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedProvider waits for a token before each completion.
type rateLimitedProvider struct {
	underlying Provider
	limiter    *rate.Limiter
}

// WithRateLimit wraps p with a token bucket shared by every caller. A
// non-positive limit returns p unchanged; a burst below 1 is coerced to 1.
func WithRateLimit(p Provider, limit rate.Limit, burst int) Provider {
	if limit <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{underlying: p, limiter: rate.NewLimiter(limit, burst)}
}

func (r *rateLimitedProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ProviderError{Kind: KindRateLimited, Model: req.Model, Err: err}
	}
	return r.underlying.Complete(ctx, req)
}
