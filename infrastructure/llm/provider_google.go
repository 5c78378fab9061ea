package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when ClientConfig.Model is empty.
const GoogleDefaultModel = "gemini-1.5-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for the Gemini API. Screenshots are
// sent as inline byte parts after the prompt.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.HTTPOptions.BaseURL = baseURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends the prompt and images to Gemini.
func (p *googleProvider) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	contents := p.buildContents(req, options)
	config := p.buildGenerationConfig(options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", 0, 0, NewProviderError("google", ErrorTypeContentPolicy, 0,
			"prompt blocked: "+string(resp.PromptFeedback.BlockReason), nil)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	var promptTokens, outputTokens int
	if usage := resp.UsageMetadata; usage != nil {
		promptTokens = int(usage.PromptTokenCount)
		outputTokens = int(usage.CandidatesTokenCount)
	}
	tokensIn := p.tokenCounter.GetTokenCount(promptTokens, req.Prompt)
	tokensOut := p.tokenCounter.GetTokenCount(outputTokens, content)

	return content, tokensIn, tokensOut, nil
}

// buildContents creates a single user turn holding the prompt followed by
// one inline part per image. Gemini has no system role in this API, so a
// system instruction is prepended to the prompt text.
func (p *googleProvider) buildContents(req Request, options RequestOptions) []*genai.Content {
	prompt := req.Prompt
	if options.System != "" {
		prompt = fmt.Sprintf("System: %s\n\nUser: %s", options.System, req.Prompt)
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, imageMIMEType(img)))
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// buildGenerationConfig maps options onto Gemini's supported ranges.
func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(Clamp(*options.Temperature, 0.0, 2.0)))
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(options.MaxTokens, math.MaxInt32))
	}
	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(Clamp(*options.TopP, 0.0, 1.0)))
	}
	if topK, ok := options.Extra["top_k"].(int); ok {
		config.TopK = genai.Ptr(float32(Clamp(topK, 1, 40)))
	}

	return config
}

// handleError converts SDK errors into ProviderErrors.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyMessage(apiErr.Message) || isSafetyMessage(apiErr.Status) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		if containsContentPolicyError(gErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(gErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

func isSafetyMessage(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}

// containsContentPolicyError reports whether a googleapi error was raised
// by safety filtering.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if isSafetyMessage(apiErr.Message) || strings.Contains(strings.ToLower(apiErr.Message), "policy") {
		return true
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
