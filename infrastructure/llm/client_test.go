package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// TestNewClient checks configuration errors and that every provider
// registers itself.
func TestNewClient(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "google", "openai"}, Providers())

	tests := []struct {
		name     string
		provider string
		config   ClientConfig
		wantErr  error
	}{
		{name: "missing key", provider: "openai", config: ClientConfig{}, wantErr: ErrEmptyAPIKey},
		{name: "unknown provider", provider: "llama", config: ClientConfig{APIKey: "k"}, wantErr: ErrUnknownProvider},
		{name: "openai", provider: "openai", config: ClientConfig{APIKey: "k"}},
		{name: "anthropic", provider: "anthropic", config: ClientConfig{APIKey: "k", Model: "claude-3-haiku"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.provider, tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, client.Provider())
			assert.NotEmpty(t, client.GetModel())
		})
	}

	_, err := NewClient("openai", ClientConfig{APIKey: "k", BaseURL: "ftp://example.com"})
	assert.Error(t, err, "non-http base URL is rejected")
}

// TestClient_Generate covers the text generator contract: images and
// options reach the provider, and failures are classified.
func TestClient_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("passes prompt images and merged options", func(t *testing.T) {
		mock := NewMockCoreLLM()
		client := newClient("google", mock, ClientConfig{
			Options: map[string]any{"temperature": 0.2, "max_tokens": 512},
		})

		img := ports.Image{Data: []byte("png"), MIMEType: "image/png"}
		text, err := client.Generate(ctx, "rate this", []ports.Image{img})
		require.NoError(t, err)
		assert.Equal(t, "test response", text)

		last := mock.LastCall()
		assert.Equal(t, "rate this", last.Prompt)
		assert.Equal(t, []ports.Image{img}, last.Images)
		assert.Equal(t, 0.2, last.Options["temperature"])

		_, _, _, err = client.GenerateWithUsage(ctx, Request{Prompt: "p", Options: map[string]any{"max_tokens": 64}})
		require.NoError(t, err)
		assert.Equal(t, 64, mock.LastCall().Options["max_tokens"], "call options override client options")
		assert.Equal(t, 512, client.options["max_tokens"], "client defaults are not mutated")
	})

	tests := []struct {
		name     string
		response string
		err      error
		want     error
	}{
		{name: "blank output", response: "  \n", want: ports.ErrNoOutput},
		{name: "empty response error", err: ErrEmptyResponse, want: ports.ErrNoOutput},
		{
			name: "rate limited",
			err:  NewProviderError("google", ErrorTypeRateLimit, 429, "slow down", nil),
			want: ports.ErrRateLimited,
		},
		{
			name: "bad credentials",
			err:  NewProviderError("google", ErrorTypeAuthentication, 401, "", nil),
			want: ports.ErrAuthenticationFailed,
		},
		{name: "circuit open", err: ErrCircuitOpen, want: ports.ErrServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: ports.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.Response = tt.response
			mock.Error = tt.err
			client := newClient("google", mock, ClientConfig{})

			_, err := client.Generate(ctx, "prompt", nil)
			require.ErrorIs(t, err, tt.want)

			var llmErr *ports.LLMError
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, "test-model", llmErr.Model)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err, "the provider error stays in the chain")
			}
		})
	}

	t.Run("content policy keeps provider type", func(t *testing.T) {
		mock := NewMockCoreLLM()
		mock.Error = NewProviderError("openai", ErrorTypeContentPolicy, 400, "blocked", nil)
		client := newClient("openai", mock, ClientConfig{})

		_, err := client.Generate(ctx, "prompt", nil)
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ErrorTypeContentPolicy, perr.Type)
		assert.False(t, errors.Is(err, ports.ErrServiceUnavailable))
	})
}

// TestClient_MiddlewareOrder verifies the first middleware is outermost.
func TestClient_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return middlewareFunc{next: next, fn: func(ctx context.Context, req Request) (string, int, int, error) {
				order = append(order, name)
				return next.DoRequest(ctx, req)
			}}
		}
	}

	client := newClient("google", NewMockCoreLLM(), ClientConfig{
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	_, err := client.Generate(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type middlewareFunc struct {
	next CoreLLM
	fn   func(context.Context, Request) (string, int, int, error)
}

func (m middlewareFunc) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	return m.fn(ctx, req)
}
func (m middlewareFunc) GetModel() string  { return m.next.GetModel() }
func (m middlewareFunc) SetModel(s string) { m.next.SetModel(s) }

// TestParseRequestOptions checks defaults, range checks and Extra.
func TestParseRequestOptions(t *testing.T) {
	opts := ParseRequestOptions(map[string]any{
		"temperature": 1,
		"top_p":       1.5,
		"max_tokens":  -3,
		"system":      "be terse",
		"top_k":       10,
	}, "m")

	assert.Equal(t, "m", opts.Model)
	assert.Equal(t, DefaultMaxTokens, opts.MaxTokens)
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 1.0, *opts.Temperature, "integer temperatures are widened")
	assert.Nil(t, opts.TopP, "out of range values fall back to the provider default")
	assert.Equal(t, "be terse", opts.System)
	assert.Equal(t, map[string]any{"top_k": 10}, opts.Extra)

	empty := ParseRequestOptions(nil, "m")
	assert.Nil(t, empty.Temperature)
	assert.Empty(t, empty.Extra)
}

// TestIsRetryable documents which failures are worth another attempt.
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("reset by peer"), true},
		{"circuit open", ErrCircuitOpen, false},
		{"canceled", context.Canceled, false},
		{"server error", NewProviderError("x", ErrorTypeServerError, 503, "", nil), true},
		{"rate limit", NewProviderError("x", ErrorTypeRateLimit, 429, "", nil), true},
		{"bad request", NewProviderError("x", ErrorTypeBadRequest, 400, "", nil), false},
		{"content policy", NewProviderError("x", ErrorTypeContentPolicy, 0, "", nil), false},
		{
			"canceled inside provider error",
			(&ErrorClassifier{Provider: "x"}).ClassifyContextError(context.Canceled),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

// TestErrorClassifier_ClassifyHTTPError maps status codes to error types.
func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}
	tests := []struct {
		status int
		want   ErrorType
	}{
		{401, ErrorTypeAuthentication},
		{403, ErrorTypeAuthentication},
		{429, ErrorTypeRateLimit},
		{400, ErrorTypeBadRequest},
		{422, ErrorTypeBadRequest},
		{404, ErrorTypeNotFound},
		{504, ErrorTypeTimeout},
		{500, ErrorTypeServerError},
		{529, ErrorTypeServerError},
		{0, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		perr := ec.ClassifyHTTPError(tt.status, "msg", nil)
		assert.Equal(t, tt.want, perr.Type, "status %d", tt.status)
	}

	perr := ec.ClassifyHTTPError(429, "raw", errors.New("boom"))
	assert.Equal(t, "openai error (HTTP 429) [rate_limit]: openai rate limit exceeded: boom", perr.Error())
}
