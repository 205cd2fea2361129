package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/sanarberkebayram/monetizeit/internal/apikey/domain"
	"github.com/sanarberkebayram/monetizeit/internal/management"
)

var (
	ErrMissingAPIKey       = errors.New("missing_api_key")
	ErrRateLimited         = errors.New("rate_limit_exceeded")
	ErrQuotaExceeded       = errors.New("quota_exceeded")
	ErrEmissionFailed      = errors.New("usage_emission_failed")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// AbortWithError attaches err to the request and stops the handler chain.
// The error handling middleware turns it into the response.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandlingMiddleware maps admission errors to status codes and a
// stable response shape.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		lastErr := c.Errors.Last()
		if lastErr == nil || c.Writer.Written() {
			return
		}

		status, errType := ClassifyError(lastErr.Err)
		c.JSON(status, errorResponse{Error: errorBody{
			Type:    errType,
			Message: messageFor(errType),
		}})
	}
}

// ClassifyError maps an error to its HTTP status and wire type.
func ClassifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return http.StatusUnauthorized, "missing_api_key"
	case errors.Is(err, apikeydomain.ErrInvalidKey):
		return http.StatusUnauthorized, "invalid_api_key"
	case errors.Is(err, apikeydomain.ErrInactiveKey):
		return http.StatusUnauthorized, "inactive_api_key"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusForbidden, "quota_exceeded"
	case errors.Is(err, ErrEmissionFailed):
		return http.StatusServiceUnavailable, "usage_emission_failed"
	case errors.Is(err, management.ErrUnavailable):
		// A request that cannot be validated is unauthorized, not a
		// server error; the validator being down must not read as 5xx
		// to the caller.
		return http.StatusUnauthorized, "validation_failed"
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func messageFor(errType string) string {
	switch errType {
	case "missing_api_key":
		return "provide an API key in the X-API-Key header"
	case "invalid_api_key":
		return "the API key is not recognized"
	case "inactive_api_key":
		return "the API key is not active"
	case "rate_limit_exceeded":
		return "rate limit exceeded, retry later"
	case "quota_exceeded":
		return "monthly quota exhausted"
	case "usage_emission_failed":
		return "usage recording is unavailable"
	case "validation_failed":
		return "the API key could not be validated"
	case "upstream_unavailable":
		return "upstream service is unavailable"
	default:
		return "internal error"
	}
}
