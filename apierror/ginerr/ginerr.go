package ginerr

import (
	"github.com/deicod/svcerr/apierror"
	"github.com/gin-gonic/gin"
)

// Abort writes err through rs and stops the handler chain.
func Abort(c *gin.Context, rs apierror.Responder, err error) {
	_ = c.Error(err)
	rs.Write(c.Writer, c.Request, err)
	c.Abort()
}

// Middleware renders the last error attached with c.Error when a handler returns
// without writing a response.
func Middleware(rs apierror.Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		rs.Write(c.Writer, c.Request, c.Errors.Last().Err)
	}
}
