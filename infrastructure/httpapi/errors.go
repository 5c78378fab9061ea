package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-gavel-ratings/internal/domain"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   bool     `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// statusFor maps an application error onto an HTTP status code.
func statusFor(err error) int {
	var llmErr *ports.LLMError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoFeedbackFound), errors.Is(err, domain.ErrInsufficientEvidence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ports.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &llmErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the JSON error body for err. Internal failures are
// logged and reported without their cause.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: true, Message: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Details = verr.Errors
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		resp.Message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a malformed request that never reached a service.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: true, Message: msg})
}
