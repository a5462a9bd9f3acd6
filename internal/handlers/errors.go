package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"memeshare/api/internal/gateway"
	"memeshare/api/internal/middleware"
	"memeshare/api/internal/service"
)

// fail translates a workflow error into a status code and a {"detail": ...}
// body.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func classify(err error) (int, string) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, trimSentinel(err, service.ErrValidation)
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, service.ErrUnauthorized.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, service.ErrNotFound.Error()
	case errors.Is(err, service.ErrContentUnavailable):
		return http.StatusNotFound, service.ErrContentUnavailable.Error()
	case errors.Is(err, gateway.ErrTimeout):
		return http.StatusRequestTimeout, "upload failed: " + gateway.ErrTimeout.Error()
	case errors.As(err, &gwErr):
		return http.StatusInternalServerError, "upload failed: " + gwErr.Error()
	case errors.Is(err, gateway.ErrNotConfigured):
		return http.StatusInternalServerError, "upload failed: " + gateway.ErrNotConfigured.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
