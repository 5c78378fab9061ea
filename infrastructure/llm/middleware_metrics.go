package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	provider  string
}

// MetricsMiddleware records latency, request counts and token usage for
// every call, labelled by provider, model and status.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector, provider: provider}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, req)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(err),
	}
	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)
	if len(req.Images) > 0 {
		m.collector.RecordCounter("llm_images_total", float64(len(req.Images)), labels)
	}

	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), withLabel(labels, "token_type", "output"))
	}

	return response, tokensIn, tokensOut, err
}

// requestStatus maps err onto a small, fixed label set.
func requestStatus(err error) string {
	var perr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &perr):
		return perr.Type.String()
	default:
		return "error"
	}
}

func (m *metricsLLM) GetModel() string      { return m.next.GetModel() }
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
