package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultRequestTimeout bounds how long a single HTTP request may
// spend in the mutation pipeline before the storage backend is
// considered unresponsive.
const DefaultRequestTimeout = 30 * time.Second

// Timeout attaches a deadline to the request context and aborts with
// 504 if the handler chain hasn't finished by then.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"code":    "request_timeout",
				"message": "request processing timeout",
			})
		}
	}
}
