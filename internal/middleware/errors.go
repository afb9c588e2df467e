package middleware

import (
	"io"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(classifier *apierrors.Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		classifier.Handle(c, c.Errors.Last().Err)
	}
}

// Recovery turns a panic into a classified internal error.
func Recovery(classifier *apierrors.Classifier) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		classifier.Handle(c, apierrors.Recovered(recovered))
	})
}
