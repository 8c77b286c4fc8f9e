package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gin adapts an http middleware such as the one built by NewMiddleware to gin.
// The chain continues only if mw calls its next handler; the request it passes on,
// including any context values, replaces c.Request.
func Gin(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		mw(next).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
