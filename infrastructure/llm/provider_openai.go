package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when ClientConfig.Model is empty. It accepts
// image input.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM for the chat completions API.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = baseURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends one chat completion. Images travel as data URIs in
// image_url parts of the user message.
func (p *openAIProvider) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	options := ParseRequestOptions(req.Options, p.GetModel())

	resp, err := p.client.CreateChatCompletion(ctx, p.buildChatCompletionRequest(req, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", 0, 0, NewProviderError("openai", ErrorTypeContentPolicy, 0,
			"response blocked by content filter", nil)
	}
	content := choice.Message.Content

	tokensIn := p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, req.Prompt)
	tokensOut := p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content)

	return content, tokensIn, tokensOut, nil
}

func (p *openAIProvider) buildChatCompletionRequest(req Request, options RequestOptions) openai.ChatCompletionRequest {
	chat := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: p.buildMessages(req, options),
	}
	p.applyRequestParameters(&chat, options)
	return chat
}

// buildMessages uses plain string content for text-only prompts and
// multi-part content when images are attached; the API rejects a message
// that sets both.
func (p *openAIProvider) buildMessages(req Request, options RequestOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) == 0 {
		user.Content = req.Prompt
	} else {
		user.MultiContent = make([]openai.ChatMessagePart, 0, len(req.Images)+1)
		user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
		for _, img := range req.Images {
			user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    imageDataURI(img),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}

	return append(messages, user)
}

func (p *openAIProvider) applyRequestParameters(req *openai.ChatCompletionRequest, options RequestOptions) {
	if options.Temperature != nil {
		req.Temperature = float32(Clamp(*options.Temperature, 0.0, 2.0))
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	if options.TopP != nil {
		req.TopP = float32(Clamp(*options.TopP, 0.0, 1.0))
	}
	if v, ok := options.Extra["frequency_penalty"]; ok {
		if penalty, valid := SafeFloat32(v); valid {
			req.FrequencyPenalty = float32(Clamp(float64(penalty), MinPenalty, MaxPenalty))
		}
	}
	if v, ok := options.Extra["presence_penalty"]; ok {
		if penalty, valid := SafeFloat32(v); valid {
			req.PresencePenalty = float32(Clamp(float64(penalty), MinPenalty, MaxPenalty))
		}
	}
}

func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		if code, ok := apiErr.Code.(string); ok && code == "content_filter" {
			return NewProviderError("openai", ErrorTypeContentPolicy, apiErr.HTTPStatusCode, message, err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError("openai", ErrorTypeNetwork, 0, "request failed", err)
}
