package llm

import (
	"encoding/base64"
	"net/http"
	"strings"
	"sync"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// BaseProvider holds the model name shared by every provider and guards it
// for concurrent use.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// TokenCounter estimates token counts when a provider omits usage data.
type TokenCounter struct {
	// CharactersPerToken is the average characters per token.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens approximates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount prefers actual when the provider reported it.
func (tc *TokenCounter) GetTokenCount(actual int, text string) int {
	if actual > 0 {
		return actual
	}
	return tc.EstimateTokens(text)
}

// imageMIMEType returns img's declared type or sniffs one from its bytes.
func imageMIMEType(img ports.Image) string {
	if img.MIMEType != "" {
		return img.MIMEType
	}
	mime := http.DetectContentType(img.Data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

// imageDataURI encodes img as a base64 data URI.
func imageDataURI(img ports.Image) string {
	return "data:" + imageMIMEType(img) + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
