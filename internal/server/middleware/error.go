package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/pkg/api"
)

// ErrorHandler translates errors attached by handlers into JSON responses.
// Gateway error kinds map onto HTTP statuses here, in one place.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := statusFor(err)

		if status >= http.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}

		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
	}
}

func statusFor(err error) int {
	var providerErr *api.ProviderError
	var protocolErr *api.ProtocolError
	var networkErr *api.NetworkError
	var upstreamErr *api.UpstreamError

	switch {
	case errors.Is(err, catalog.ErrUnknownProvider),
		errors.Is(err, catalog.ErrConfigMissing):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrConfigInvalid),
		errors.Is(err, catalog.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.As(err, &providerErr),
		errors.As(err, &protocolErr),
		errors.As(err, &networkErr),
		errors.As(err, &upstreamErr),
		errors.Is(err, api.ErrUnexpectedEnd):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
