package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	solvererrors "solver/internal/errors"
	"solver/internal/logging"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// openAIProvider speaks the OpenAI-compatible chat completions API. With the
// default base URL it talks to OpenRouter.
type openAIProvider struct {
	client      *openai.Client
	temperature float32
	maxTokens   int
	logger      logging.Logger
}

// headerTransport adds fixed headers such as the OpenRouter attribution
// pair HTTP-Referer and X-Title.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}

// NewOpenAIProvider constructs a provider for an OpenAI-compatible endpoint.
func NewOpenAIProvider(config Config, logger logging.Logger) Provider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = baseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": config.Referer,
				"X-Title":      config.Title,
			},
		},
	}

	return &openAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      logging.OrNop(logger),
	}
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	started := time.Now()
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		classified := classifyError(ctx, req.Model, err)
		p.logger.Warn("completion failed role=%s model=%s after %v: %v", req.Role, req.Model, time.Since(started), classified)
		return "", classified
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Kind: KindMalformed, Model: req.Model, Err: errors.New("response has no choices")}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{Kind: KindMalformed, Model: req.Model, Err: errors.New("response content is empty")}
	}

	p.logger.Debug("completion ok role=%s model=%s prompt_tokens=%d completion_tokens=%d finish=%s in %v",
		req.Role, req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
		resp.Choices[0].FinishReason, time.Since(started))
	return content, nil
}

// classifyError maps client errors onto provider error kinds.
func classifyError(ctx context.Context, model string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Kind: kindForStatus(apiErr.HTTPStatusCode), Status: apiErr.HTTPStatusCode, Model: model, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Kind: kindForStatus(reqErr.HTTPStatusCode), Status: reqErr.HTTPStatusCode, Model: model, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Kind: KindTimeout, Model: model, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: KindTimeout, Model: model, Err: err}
	}
	if solvererrors.IsTransient(err) {
		return &ProviderError{Kind: KindUnavailable, Model: model, Err: err}
	}
	return &ProviderError{Kind: KindMalformed, Model: model, Err: err}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusPaymentRequired:
		return KindAuthFailed
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case solvererrors.IsTransientHTTPStatus(status), status == 0:
		return KindUnavailable
	default:
		return KindMalformed
	}
}
