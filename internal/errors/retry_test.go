package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct {
	transient bool
}

func (e statusErr) Error() string   { return fmt.Sprintf("status error transient=%v", e.transient) }
func (e statusErr) Transient() bool { return e.transient }

// clientTimeout classifies itself while wrapping a deadline error, the way
// provider errors wrap http.Client timeouts.
type clientTimeout struct{}

func (clientTimeout) Error() string   { return "client timeout" }
func (clientTimeout) Transient() bool { return true }
func (clientTimeout) Unwrap() error   { return context.DeadlineExceeded }

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxAttempts: max, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(stderrors.New("x"), "")))
	assert.False(t, IsTransient(NewPermanentError(stderrors.New("x"), "")))
	assert.True(t, IsTransient(fmt.Errorf("wrap: %w", statusErr{transient: true})))
	assert.False(t, IsTransient(statusErr{transient: false}))
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNRESET)))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(fmt.Errorf("wrap: %w", clientTimeout{})))
	assert.False(t, IsTransient(stderrors.New("plain")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestRetryWithResultRetriesTransientFailures(t *testing.T) {
	var seen []int
	got, err := RetryWithResult(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) (string, error) {
		seen = append(seen, attempt)
		if attempt < 2 {
			return "", NewTransientError(stderrors.New("busy"), "")
		}
		return "ok", nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestRetryWithResultStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := NewPermanentError(stderrors.New("bad key"), "auth failed")
	_, err := RetryWithResult(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, permanent
	}, nil)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResultExhausts(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(2), func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, statusErr{transient: true}
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls)
}

func TestRetryWithResultHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, statusErr{transient: true}
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, JitterFactor: 0.25}
	for attempt := 0; attempt < 6; attempt++ {
		delay := calculateBackoff(attempt, cfg)
		assert.Greater(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 3*time.Second)
	}
	assert.Equal(t, 4*time.Second, calculateBackoff(2, RetryConfig{BaseDelay: time.Second}))
}
