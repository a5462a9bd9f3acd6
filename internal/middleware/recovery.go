package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 with the usual error body. The
// stack goes to the log only.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error().
				Str("request_id", RequestIDFrom(c)).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
		}()
		c.Next()
	}
}
