package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errSimulated is returned by MockCoreLLM when it is told to fail without a
// specific error.
var errSimulated = errors.New("simulated failure")

// MockCoreLLM is a scriptable CoreLLM for middleware and client tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	CallCount      int
	LastRequest    Request
	LastContext    context.Context
	CallTimestamps []time.Time
}

// NewMockCoreLLM returns a mock that answers "test response" with 10 input
// and 20 output tokens.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest records the call and answers according to the configuration.
func (m *MockCoreLLM) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.LastContext = ctx
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	response, tokensIn, tokensOut, configured := m.Response, m.TokensIn, m.TokensOut, m.Error
	failUntil := m.FailUntilAttempt
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	switch {
	case failUntil > 0 && call <= failUntil:
		if configured == nil {
			return "", 0, 0, errSimulated
		}
		return "", 0, 0, configured
	case failUntil == 0 && configured != nil:
		return "", 0, 0, configured
	}
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of DoRequest calls.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// LastCall returns the most recent request.
func (m *MockCoreLLM) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// SetError changes the configured error.
func (m *MockCoreLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err
}
