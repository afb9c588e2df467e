// Package response renders the JSON envelope shared by every endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

const CreatedMessage = "Resource created successfully"

// now is replaced in tests.
var now = time.Now

type Meta map[string]any

type SuccessBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Meta    Meta   `json:"meta"`
}

type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Errors  []any  `json:"errors"`
	Meta    Meta   `json:"meta"`
}

type options struct {
	message string
	extra   Meta
}

type Option func(*options)

// WithMessage sets the top-level message.
func WithMessage(message string) Option {
	return func(o *options) { o.message = message }
}

// WithMeta merges extra keys into meta. request_id and timestamp always win.
func WithMeta(key string, value any) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = Meta{}
		}
		o.extra[key] = value
	}
}

// WithPagination adds the pagination block to meta.
func WithPagination(p utils.PaginationResponse) Option {
	return WithMeta("pagination", p)
}

// Success renders the success envelope with status.
func Success(c *gin.Context, status int, data any, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c.JSON(status, SuccessBody{
		Success: true,
		Data:    data,
		Message: o.message,
		Meta:    buildMeta(c, o.extra),
	})
}

// OK sends a 200 success response
func OK(c *gin.Context, data any, opts ...Option) {
	Success(c, http.StatusOK, data, opts...)
}

// Created sends a 201 response with the standard created message
func Created(c *gin.Context, data any, opts ...Option) {
	Success(c, http.StatusCreated, data, append([]Option{WithMessage(CreatedMessage)}, opts...)...)
}

// Accepted sends a 202 response
func Accepted(c *gin.Context, data any, opts ...Option) {
	Success(c, http.StatusAccepted, data, opts...)
}

// Error renders the failure envelope. A nil errs is rendered as [].
func Error(c *gin.Context, status int, message string, errs []any) {
	if errs == nil {
		errs = []any{}
	}

	c.AbortWithStatusJSON(status, ErrorBody{
		Success: false,
		Error:   message,
		Errors:  errs,
		Meta:    buildMeta(c, nil),
	})
}

// RequestID returns the id assigned by the RequestID middleware, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyRequestID)
}

func buildMeta(c *gin.Context, extra Meta) Meta {
	meta := Meta{}
	for k, v := range extra {
		meta[k] = v
	}
	meta["request_id"] = RequestID(c)
	meta["timestamp"] = now().UTC().Format(time.RFC3339)
	return meta
}
