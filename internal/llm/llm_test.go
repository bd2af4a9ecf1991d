package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"solver/internal/domain"
	solvererrors "solver/internal/errors"
)

func fastRetry() solvererrors.RetryConfig {
	return solvererrors.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
	})
}

func TestOpenAIProviderSendsMessagesAndHeaders(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://example.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Solver", r.Header.Get("X-Title"))
		assert.Equal(t, "openai/gpt-4.1", body["model"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "what is 2+2", messages[1].(map[string]any)["content"])
		assert.NotContains(t, body, "response_format")
		writeCompletion(w, "4")
	})

	p := NewOpenAIProvider(Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Referer: "https://example.test",
		Title:   "Solver",
	}, nil)
	got, err := p.Complete(context.Background(), Request{Role: RolePlanner, Model: "openai/gpt-4.1", System: "be terse", Prompt: "what is 2+2"})
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestOpenAIProviderRequestsJSONObject(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any, _ *http.Request) {
		format, ok := body["response_format"].(map[string]any)
		require.True(t, ok, "response_format missing from %v", body)
		assert.Equal(t, "json_object", format["type"])
		writeCompletion(w, `{"plan":[]}`)
	})
	p := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	got, err := p.Complete(context.Background(), Request{Role: RolePlanner, Model: "m", Prompt: "plan", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"plan":[]}`, got)
}

func TestOpenAIProviderClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		transient bool
	}{
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusUnauthorized, KindAuthFailed, false},
		{http.StatusServiceUnavailable, KindUnavailable, true},
		{http.StatusGatewayTimeout, KindTimeout, true},
		{http.StatusBadRequest, KindMalformed, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := chatServer(t, func(w http.ResponseWriter, _ map[string]any, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})
			p := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
			_, err := p.Complete(context.Background(), Request{Model: "m", Prompt: "x"})

			var perr *ProviderError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, tt.transient, solvererrors.IsTransient(err))
		})
	}
}

func TestOpenAIProviderRejectsEmptyContent(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ map[string]any, _ *http.Request) {
		writeCompletion(w, "   ")
	})
	p := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}, nil)
	_, err := p.Complete(context.Background(), Request{Model: "m", Prompt: "x"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindMalformed, perr.Kind)
}

// slowServer answers only after the client has given up.
func slowServer(t *testing.T, calls *int32, models *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return chatServer(t, func(w http.ResponseWriter, body map[string]any, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if models != nil {
			mu.Lock()
			*models = append(*models, body["model"].(string))
			mu.Unlock()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			writeCompletion(w, "late")
		}
	})
}

func TestOpenAIProviderClientTimeoutIsProviderTimeout(t *testing.T) {
	var calls int32
	srv := slowServer(t, &calls, nil)
	p := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond}, nil)

	_, err := p.Complete(context.Background(), Request{Role: RolePlanner, Model: "m", Prompt: "x"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.True(t, solvererrors.IsTransient(err))
	assert.Equal(t, domain.AbortProviderError, domain.ReasonForRun(nil, fmt.Errorf("planner completion: %w", err)))
}

func TestWithRetryRetriesClientTimeouts(t *testing.T) {
	var (
		calls  int32
		models []string
	)
	srv := slowServer(t, &calls, &models)
	base := NewOpenAIProvider(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond}, nil)
	p := WithRetry(base, fastRetry(), "fallback-model", nil)

	_, err := p.Complete(context.Background(), Request{Role: RoleGenerator, Model: "m", Prompt: "x"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"m", "fallback-model", "fallback-model"}, models)
}

func TestScriptedRepeatsLastReply(t *testing.T) {
	s := NewScripted(map[string][]Reply{
		RoleCritic: Texts("Incorrect: 5", "Correct"),
	})
	ctx := context.Background()
	for _, want := range []string{"Incorrect: 5", "Correct", "Correct"} {
		got, err := s.Complete(ctx, Request{Role: RoleCritic})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, s.Calls(RoleCritic))
	assert.Equal(t, 0, s.Calls(RolePlanner))

	_, err := s.Complete(ctx, Request{Role: RolePlanner})
	assert.Error(t, err)
}

func TestWithRetrySwitchesToFallbackModel(t *testing.T) {
	var models []string
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		models = append(models, req.Model)
		if len(models) == 1 {
			return "", &ProviderError{Kind: KindRateLimited, Status: 429}
		}
		return "ok", nil
	})
	p := WithRetry(base, fastRetry(), "openai/gpt-4o-mini", nil)
	got, err := p.Complete(context.Background(), Request{Role: RoleGenerator, Model: "openai/gpt-4.1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, []string{"openai/gpt-4.1", "openai/gpt-4o-mini"}, models)
}

func TestWithRetryDoesNotRetryAuthFailures(t *testing.T) {
	var calls int32
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", &ProviderError{Kind: KindAuthFailed, Status: 401}
	})
	_, err := WithRetry(base, fastRetry(), "", nil).Complete(context.Background(), Request{Role: RolePlanner})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindAuthFailed, perr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWithRetryGivesUpAfterBudget(t *testing.T) {
	var calls int32
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", &ProviderError{Kind: KindUnavailable, Status: 503}
	})
	_, err := WithRetry(base, fastRetry(), "", nil).Complete(context.Background(), Request{Role: RoleCritic})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWithRateLimitHonoursCancellation(t *testing.T) {
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) { return "ok", nil })
	p := WithRateLimit(base, rate.Every(time.Hour), 1)

	got, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, Request{})
	require.Error(t, err)
}

func TestWithRateLimitDisabled(t *testing.T) {
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) { return "ok", nil })
	assert.IsType(t, ProviderFunc(nil), WithRateLimit(base, 0, 0))
}

func TestWithCacheServesRepeatsUntilExpiry(t *testing.T) {
	var calls int32
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return string(rune('a' + n - 1)), nil
	})
	p := WithCache(base, CacheConfig{Enabled: true, Size: 4, TTL: time.Minute})
	cached := p.(*cachedProvider)
	now := time.Unix(1000, 0)
	cached.now = func() time.Time { return now }

	req := Request{Model: "m", Prompt: "same"}
	first, _ := p.Complete(context.Background(), req)
	second, _ := p.Complete(context.Background(), req)
	assert.Equal(t, "a", first)
	assert.Equal(t, "a", second)

	other, _ := p.Complete(context.Background(), Request{Model: "other", Prompt: "same"})
	assert.Equal(t, "b", other)

	now = now.Add(2 * time.Minute)
	third, _ := p.Complete(context.Background(), req)
	assert.Equal(t, "c", third)
}

func TestWithCacheDoesNotStoreErrors(t *testing.T) {
	var calls int32
	base := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", &ProviderError{Kind: KindUnavailable}
		}
		return "ok", nil
	})
	p := WithCache(base, CacheConfig{Enabled: true})
	_, err := p.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	got, err := p.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestCacheKeySeparatesFields(t *testing.T) {
	assert.NotEqual(t, cacheKey(Request{Model: "ab", Prompt: "c"}), cacheKey(Request{Model: "a", Prompt: "bc"}))
	assert.NotEqual(t, cacheKey(Request{Prompt: "p"}), cacheKey(Request{Prompt: "p", JSON: true}))
	assert.Len(t, cacheKey(Request{}), 64)
}

func TestMockProvider(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	plan, err := m.Complete(ctx, Request{Role: RolePlanner})
	require.NoError(t, err)
	assert.Contains(t, plan, `"plan"`)

	code, err := m.Complete(ctx, Request{Role: RoleGenerator, Prompt: "Problem: What is (12 + 30) / 2?\nStep 1: evaluate"})
	require.NoError(t, err)
	assert.Contains(t, code, "result = (12 + 30) / 2")

	verdict, err := m.Complete(ctx, Request{Role: RoleCritic})
	require.NoError(t, err)
	assert.Equal(t, "Correct", verdict)

	answer, err := m.Complete(ctx, Request{Role: RoleSynthesizer, Prompt: "step_1_result = 21\n"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 21.", answer)
}

func TestBuild(t *testing.T) {
	_, err := Build(Config{Provider: ProviderOpenRouter}, nil)
	assert.Error(t, err, "missing api key")

	_, err = Build(Config{Provider: "bogus", APIKey: "k"}, nil)
	assert.Error(t, err)

	p, err := Build(Config{Provider: ProviderMock}, nil)
	require.NoError(t, err)
	assert.IsType(t, Mock{}, p)

	p, err = Build(Config{Provider: ProviderOpenRouter, APIKey: "k", Retry: fastRetry(), Cache: CacheConfig{Enabled: true}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &cachedProvider{}, p)
}
