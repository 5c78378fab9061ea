package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

// Image is an inline image handed to a multimodal generator.
type Image struct {
	// Data holds the raw encoded bytes (PNG, JPEG, ...).
	Data []byte

	// MIMEType is the IANA media type of Data, e.g. "image/png".
	MIMEType string

	// Name is an optional label such as the original file name.
	Name string
}

// TextGenerator defines the interface for the generative-language model
// that turns raw feedback into a structured review.
// Implementations handle provider-specific authentication, request
// formatting and response parsing.
type TextGenerator interface {
	// Generate sends prompt, plus any images, to the model and returns the
	// generated text. The implementation should handle rate limiting,
	// retries and timeouts. An empty response is reported as ErrNoOutput.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline propagation
	//   - prompt: The instruction text for the model
	//   - images: Zero or more screenshots to analyze alongside the prompt
	Generate(ctx context.Context, prompt string, images []Image) (string, error)

	// GetModel returns the model identifier being used by this generator.
	// This is useful for logging and debugging purposes.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like reviews created, extraction
	// outcomes, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like the number of stored reviews.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like overall ratings.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NopMetrics is a MetricsCollector that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)      {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)        {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string)    {}

var _ MetricsCollector = NopMetrics{}

// RatingExtractor parses generated review text into ratings. It returns
// domain.ErrNoFeedbackFound when the text declares that no feedback exists.
type RatingExtractor interface {
	Extract(text string) (domain.RatingResult, error)
}
