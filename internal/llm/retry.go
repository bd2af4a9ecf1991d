package llm

import (
	"context"
	"fmt"

	solvererrors "solver/internal/errors"
	"solver/internal/logging"
)

// retryProvider retries transient failures with backoff. After the first
// transient failure it switches to the fallback model when one is set.
type retryProvider struct {
	underlying    Provider
	config        solvererrors.RetryConfig
	fallbackModel string
	logger        logging.Logger
}

// WithRetry wraps p with retry logic. A zero MaxAttempts disables retries.
func WithRetry(p Provider, config solvererrors.RetryConfig, fallbackModel string, logger logging.Logger) Provider {
	if config.MaxAttempts <= 0 {
		return p
	}
	return &retryProvider{
		underlying:    p,
		config:        config,
		fallbackModel: fallbackModel,
		logger:        logging.OrNop(logger),
	}
}

func (r *retryProvider) Complete(ctx context.Context, req Request) (string, error) {
	text, err := solvererrors.RetryWithResult(ctx, r.config, func(ctx context.Context, attempt int) (string, error) {
		attemptReq := req
		if attempt > 0 && r.fallbackModel != "" && r.fallbackModel != req.Model {
			attemptReq.Model = r.fallbackModel
			r.logger.Info("retrying %s request with fallback model %s", req.Role, r.fallbackModel)
		}
		return r.underlying.Complete(ctx, attemptReq)
	}, logging.FromContext(ctx, r.logger))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%s completion: %w", req.Role, err)
	}
	return text, nil
}
