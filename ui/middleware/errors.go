package middleware

import (
	"log"

	"github.com/kris96tian/MOFAX-Online/internal/errors"

	"github.com/gin-gonic/gin"
)

// ErrorRenderer writes an error for htmx requests; nil falls back to JSON
type ErrorRenderer func(c *gin.Context, status int, message string)

// ErrorHandler turns errors recorded with c.Error into a response whose
// status follows the error code. Handlers must not write a body after c.Error.
func ErrorHandler(renderHTML ErrorRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := errors.HTTPStatus(err)
		code := errors.GetCode(err)
		if status >= 500 {
			log.Printf("[ErrorHandler] ERROR %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		} else {
			log.Printf("[ErrorHandler] %s %s -> %d %s: %v", c.Request.Method, c.Request.URL.Path, status, code, err)
		}

		if renderHTML != nil && c.GetHeader("HX-Request") == "true" {
			renderHTML(c, status, err.Error())
			return
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
			"code":  code,
		})
	}
}
