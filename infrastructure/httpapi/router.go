// Package httpapi exposes the rating services over a JSON HTTP API built on
// gin. Every route lives under /api; failures share one error body of the
// form {"error": true, "message": "..."}.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// maxMultipartMemory is held in memory per upload before spilling to disk.
const maxMultipartMemory = 32 << 20

// Services are the application services behind the API. Analyzer may be nil
// when no generator is configured; the analysis routes then answer 503.
type Services struct {
	Driver       *application.Driver
	Consolidator *application.Consolidator
	Maintenance  *application.Maintenance
	Analyzer     *application.Analyzer
}

// Option configures the router.
type Option func(*options)

type options struct {
	logger         zerolog.Logger
	metrics        ports.MetricsCollector
	metricsHandler http.Handler
	health         func(context.Context) error
}

// WithLogger sets the base request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request latency in m.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metricsHandler = h }
}

// WithHealthCheck makes GET /healthz report the result of check.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(o *options) { o.health = check }
}

type handlers struct {
	svc Services
}

// NewRouter builds the gin engine serving svc.
func NewRouter(svc Services, opts ...Option) (*gin.Engine, error) {
	if svc.Driver == nil || svc.Consolidator == nil || svc.Maintenance == nil {
		return nil, fmt.Errorf("router requires driver, consolidator and maintenance: %w", domain.ErrInvalidConfiguration)
	}
	o := options{logger: zerolog.Nop(), metrics: ports.NopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(RequestID(o.logger), AccessLog(o.metrics), Recovery())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: true, Message: "route not found"})
	})

	h := &handlers{svc: svc}

	r.GET("/healthz", func(c *gin.Context) {
		if o.health != nil {
			if err := o.health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if o.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(o.metricsHandler))
	}

	api := r.Group("/api")

	faculty := api.Group("/faculty")
	faculty.GET("", h.listFaculty)
	faculty.POST("", h.createFaculty)
	faculty.GET("/search/:name", h.searchFaculty)
	faculty.GET("/by-name/:name/reviews", h.combinedReviews)
	faculty.POST("/consolidate", h.consolidateAll)
	faculty.POST("/consolidate/:name", h.consolidate)
	faculty.GET("/:id", h.getFaculty)
	faculty.DELETE("/:id", h.deleteFaculty)
	faculty.GET("/:id/aggregates", h.aggregates)
	faculty.POST("/:id/reviews", h.createReview)
	faculty.DELETE("/:id/reviews", h.deleteFacultyReviews)
	faculty.DELETE("/:id/reviews/course/:course", h.deleteFacultyCourseReviews)

	reviews := api.Group("/reviews")
	reviews.DELETE("/:id", h.deleteReview)
	reviews.DELETE("/course/:course", h.deleteCourseReviews)
	reviews.POST("/clear", h.clearReviews)

	analyze := api.Group("/analyze")
	analyze.POST("/text", h.analyzeText)
	analyze.POST("/screenshots", h.analyzeScreenshots)

	maintenance := api.Group("/maintenance")
	maintenance.POST("/clear-test-data", h.clearTestData)
	maintenance.POST("/dedupe-screenshots", h.dedupeScreenshots)
	maintenance.POST("/remove-last-screenshot", h.removeLastScreenshot)

	api.GET("/verify-data", h.verifyData)

	return r, nil
}
