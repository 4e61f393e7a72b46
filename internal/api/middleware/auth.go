// Package middleware holds the gin.HandlerFunc chain the HTTP layer
// installs in front of every route: authentication and request
// timeouts. Gin and its middleware-chain idiom are carried straight
// from the teacher's internal/api/middleware package.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyResolver resolves the `x-api-key` header to the author
// identifier attributed on events the request appends (spec.md 6.1).
// Satisfied by *security.APIKeys.
type APIKeyResolver interface {
	Author(key string) (string, bool)
}

// AuthorContextKey is the gin.Context key handlers read the
// authenticated author identifier from.
const AuthorContextKey = "author"

// Authentication rejects requests missing or carrying an unknown
// `x-api-key` header with 401, and otherwise stores the resolved
// author identifier in the request context.
func Authentication(keys APIKeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("x-api-key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "unauthorized", "message": "missing x-api-key header",
			})
			return
		}
		author, ok := keys.Author(key)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": "unauthorized", "message": "unknown api key",
			})
			return
		}
		c.Set(AuthorContextKey, author)
		c.Next()
	}
}

// Author returns the authenticated author identifier Authentication
// stored in c, or "" if Authentication never ran.
func Author(c *gin.Context) string {
	v, ok := c.Get(AuthorContextKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
