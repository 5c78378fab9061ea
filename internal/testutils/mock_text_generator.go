package testutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// MockTextGenerator implements ports.TextGenerator with deterministic
// responses for consistent testing.
// Responses are selected by substring match against the prompt; the
// longest matching pattern wins so that specific fixtures override
// general ones.
type MockTextGenerator struct {
	mu sync.Mutex

	// model is the mock model identifier.
	model string
	// responses maps prompt patterns to pre-defined responses.
	responses map[string]string
	// err, when set, is returned by every call.
	err error
	// calls records every request in arrival order.
	calls []GenerateCall
}

// GenerateCall is one recorded Generate invocation.
type GenerateCall struct {
	Prompt string
	Images []ports.Image
}

// NewMockTextGenerator creates a MockTextGenerator whose default response
// is a complete review with every rating set to 4.
func NewMockTextGenerator(model string) *MockTextGenerator {
	m := &MockTextGenerator{model: model, responses: make(map[string]string)}
	m.setupDefaultResponses()
	return m
}

func (m *MockTextGenerator) setupDefaultResponses() {
	m.responses[""] = ReviewText("FACULTY", Scores{4, 4, 4, 4}, "Recommended for motivated students.")
}

// AddResponse registers response for prompts containing pattern. An empty
// pattern replaces the default response.
func (m *MockTextGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[pattern] = response
}

// SetError makes every subsequent call fail with err. Pass nil to clear.
func (m *MockTextGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate implements ports.TextGenerator.
func (m *MockTextGenerator) Generate(ctx context.Context, prompt string, images []ports.Image) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if prompt == "" {
		return "", errors.New("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, GenerateCall{Prompt: prompt, Images: images})
	if m.err != nil {
		return "", m.err
	}

	best, found := "", false
	for pattern := range m.responses {
		if pattern != "" && strings.Contains(prompt, pattern) && len(pattern) > len(best) {
			best, found = pattern, true
		}
	}
	if found {
		return m.responses[best], nil
	}
	if resp, ok := m.responses[""]; ok {
		return resp, nil
	}
	return "", fmt.Errorf("no mock response for prompt: %w", ports.ErrNoOutput)
}

// GetModel implements ports.TextGenerator.
func (m *MockTextGenerator) GetModel() string { return m.model }

// Calls returns a copy of the recorded calls.
func (m *MockTextGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// Reset clears recorded calls, custom responses and any injected error.
func (m *MockTextGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make(map[string]string)
	m.calls = nil
	m.err = nil
	m.setupDefaultResponses()
}

// Verify interface compliance at compile time.
var _ ports.TextGenerator = (*MockTextGenerator)(nil)
