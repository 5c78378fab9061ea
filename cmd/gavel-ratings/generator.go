package main

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-gavel-ratings/infrastructure/llm"
	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

const (
	serviceName     = "gavel-ratings"
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxBackoff = 10 * time.Second
)

// newGenerator builds the configured provider client. Middleware runs
// outermost first: tracing, metrics, circuit breaker, rate limit, retry and
// a per-attempt timeout.
func newGenerator(cfg application.LLMConfig, metrics ports.MetricsCollector) (*llm.Client, error) {
	mw := []llm.Middleware{
		llm.TracingMiddleware(serviceName),
		llm.MetricsMiddleware(metrics, cfg.Provider),
	}
	if cfg.CircuitBreakerFailures > 0 {
		mw = append(mw, llm.CircuitBreakerMiddlewareWithMetrics(
			cfg.CircuitBreakerFailures,
			cfg.CircuitBreakerCooldown,
			llm.NewCollectorBreakerMetrics(metrics, cfg.Provider),
		))
	}
	if cfg.RateLimitRPS > 0 {
		mw = append(mw, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimitRPS), cfg.Burst))
	}
	if cfg.MaxRetries > 0 {
		mw = append(mw, llm.RetryMiddleware(cfg.MaxRetries, retryBaseDelay, retryMaxBackoff))
	}
	if cfg.Timeout > 0 {
		mw = append(mw, llm.TimeoutMiddleware(cfg.Timeout))
	}

	return llm.NewClient(cfg.Provider, llm.ClientConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Options: map[string]any{
			"temperature": cfg.Temperature,
			"max_tokens":  cfg.MaxTokens,
		},
		Middleware: mw,
	})
}
