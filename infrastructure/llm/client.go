// Package llm adapts generative-model providers to ports.TextGenerator.
//
// Google Gemini, OpenAI and Anthropic are supported behind a common CoreLLM
// interface. Cross-cutting concerns such as rate limiting, circuit breaking,
// retries, timeouts, metrics and tracing are layered on with middleware so
// the analysis code never sees provider details.
//
// Basic usage:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	    Model:  "gemini-1.5-flash",
//	    Middleware: []llm.Middleware{
//	        llm.TracingMiddleware("gavel-ratings"),
//	        llm.RetryMiddleware(2, time.Second, 10*time.Second),
//	        llm.TimeoutMiddleware(60 * time.Second),
//	    },
//	})
//	text, err := client.Generate(ctx, prompt, images)
package llm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// Request is a single generation call: the prompt, any inline images and
// provider options such as "temperature" or "max_tokens".
type Request struct {
	Prompt  string
	Images  []ports.Image
	Options map[string]any
}

// CoreLLM defines the minimal interface that providers implement and that
// middleware wraps.
type CoreLLM interface {
	// DoRequest sends req to the provider and returns the generated text
	// with the input and output token counts.
	DoRequest(ctx context.Context, req Request) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds the options for creating a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model selects the provider model. Providers fall back to their default
	// when empty.
	Model string

	// BaseURL overrides the provider endpoint. Leave empty for the default.
	BaseURL string

	// Timeout bounds the underlying HTTP client where the SDK allows it.
	Timeout time.Duration

	// Options are sent with every request unless a call overrides them.
	Options map[string]any

	// Middleware is applied in order; the first entry is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.TextGenerator on top of a middleware-wrapped
// provider.
type Client struct {
	core     CoreLLM
	provider string
	options  map[string]any
}

var _ ports.TextGenerator = (*Client)(nil)

// NewClient creates a client for providerType ("google", "openai" or
// "anthropic") and assembles its middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, providerType,
			strings.Join(Providers(), ", "))
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	return newClient(providerType, core, config), nil
}

// newClient wraps core with config's middleware. Tests use it to put a mock
// behind the same chain a provider gets.
func newClient(provider string, core CoreLLM, config ClientConfig) *Client {
	// Apply in reverse so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}
	return &Client{core: core, provider: provider, options: maps.Clone(config.Options)}
}

// Generate sends prompt and images to the model and returns its text.
// Failures are reported as *ports.LLMError wrapping both the classified
// ports sentinel and the provider's *ProviderError.
func (c *Client) Generate(ctx context.Context, prompt string, images []ports.Image) (string, error) {
	text, _, _, err := c.GenerateWithUsage(ctx, Request{Prompt: prompt, Images: images})
	return text, err
}

// GenerateWithUsage is Generate with token accounting and per-call options.
func (c *Client) GenerateWithUsage(ctx context.Context, req Request) (string, int, int, error) {
	if len(c.options) > 0 {
		merged := maps.Clone(c.options)
		maps.Copy(merged, req.Options)
		req.Options = merged
	}

	text, tokensIn, tokensOut, err := c.core.DoRequest(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		llmErr := ports.NewLLMError(c.core.GetModel(), "generate", classify(err))
		llmErr.TokensUsed = tokensIn + tokensOut
		return "", tokensIn, tokensOut, llmErr
	}
	return text, tokensIn, tokensOut, nil
}

// classify joins err with the ports sentinel that best describes it.
func classify(err error) error {
	var sentinel error
	var perr *ProviderError
	switch {
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrNoResponseChoice):
		sentinel = ports.ErrNoOutput
	case errors.Is(err, ErrCircuitOpen):
		sentinel = ports.ErrServiceUnavailable
	case errors.As(err, &perr):
		switch perr.Type {
		case ErrorTypeRateLimit:
			sentinel = ports.ErrRateLimited
		case ErrorTypeAuthentication:
			sentinel = ports.ErrAuthenticationFailed
		case ErrorTypeTimeout:
			sentinel = ports.ErrTimeout
		case ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeUnknown:
			sentinel = ports.ErrServiceUnavailable
		}
	case errors.Is(err, context.DeadlineExceeded):
		sentinel = ports.ErrTimeout
	}
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// GetModel returns the model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// Provider returns the provider name the client was created for.
func (c *Client) Provider() string { return c.provider }

// ProviderFactory creates a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is populated by each provider's init.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers factory under providerType, replacing
// any previous registration.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	return slices.Sorted(maps.Keys(providerFactories))
}
