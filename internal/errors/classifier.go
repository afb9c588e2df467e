package errors

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/response"
	"github.com/yukikurage/taskflow-api/internal/telemetry"
)

const (
	ResponseBacktraceFrames = 10
	LogBacktraceFrames      = 5

	InternalErrorMessage = "An unexpected error occurred"
)

// Classification is the HTTP rendering of a failure.
type Classification struct {
	Status    int
	Message   string
	Errors    []any
	Class     string
	Backtrace []string
}

// Classifier maps failures onto statuses and envelopes and logs each one once.
type Classifier struct {
	production bool
	logger     *slog.Logger
	tracker    telemetry.Tracker
}

func NewClassifier(production bool, logger *slog.Logger, tracker telemetry.Tracker) *Classifier {
	if tracker == nil {
		tracker = telemetry.Noop{}
	}
	return &Classifier{production: production, logger: logger, tracker: tracker}
}

func (cl *Classifier) Classify(err error) Classification {
	var (
		notFound     *NotFoundError
		invalid      *ValidationError
		badRequest   *BadRequestError
		unauthorized *UnauthorizedError
		forbidden    *ForbiddenError
	)

	backtrace := Backtrace(err)

	switch {
	case pkgerrors.As(err, &notFound):
		return Classification{
			Status:    http.StatusNotFound,
			Message:   "Record not found: " + notFound.Error(),
			Class:     "NotFoundError",
			Backtrace: backtrace,
		}
	case isRecordNotFound(err):
		return Classification{
			Status:    http.StatusNotFound,
			Message:   "Record not found: " + err.Error(),
			Class:     "NotFoundError",
			Backtrace: backtrace,
		}
	case pkgerrors.As(err, &invalid):
		errs := make([]any, 0, len(invalid.Violations))
		for _, v := range invalid.Violations {
			errs = append(errs, v)
		}
		return Classification{
			Status:    http.StatusUnprocessableEntity,
			Message:   "Validation failed",
			Errors:    errs,
			Class:     "ValidationError",
			Backtrace: backtrace,
		}
	case pkgerrors.As(err, &badRequest):
		return Classification{
			Status:    http.StatusBadRequest,
			Message:   err.Error(),
			Class:     "BadRequestError",
			Backtrace: backtrace,
		}
	case pkgerrors.As(err, &unauthorized):
		return Classification{
			Status:    http.StatusUnauthorized,
			Message:   unauthorized.Error(),
			Class:     "UnauthorizedError",
			Backtrace: backtrace,
		}
	case pkgerrors.As(err, &forbidden):
		return Classification{
			Status:    http.StatusForbidden,
			Message:   forbidden.Error(),
			Class:     "ForbiddenError",
			Backtrace: backtrace,
		}
	}

	cls := Classification{
		Status:    http.StatusInternalServerError,
		Message:   InternalErrorMessage,
		Class:     className(err),
		Backtrace: backtrace,
	}
	if !cl.production {
		cls.Message = err.Error()
		cls.Errors = []any{gin.H{"backtrace": truncate(backtrace, ResponseBacktraceFrames)}}
	}
	return cls
}

// Handle classifies err, logs it and renders the error envelope.
func (cl *Classifier) Handle(c *gin.Context, err error) {
	cls := cl.Classify(err)
	cl.log(c, err, cls)

	if cls.Status >= http.StatusInternalServerError {
		cl.tracker.TrackException(c.Request.Context(), err, map[string]any{
			"request_id": response.RequestID(c),
			"path":       c.Request.URL.Path,
		})
	}

	response.Error(c, cls.Status, cls.Message, cls.Errors)
}

func (cl *Classifier) log(c *gin.Context, err error, cls Classification) {
	level := slog.LevelWarn
	if cls.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	var userID any
	if id, ok := c.Get(constants.ContextKeyUserID); ok {
		userID = id
	}

	cl.logger.Log(c.Request.Context(), level, "request failed",
		"event", "exception",
		"exception_class", cls.Class,
		"message", err.Error(),
		"backtrace", truncate(cls.Backtrace, LogBacktraceFrames),
		"request_id", response.RequestID(c),
		"user_id", userID,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"status", cls.Status,
	)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Backtrace returns the frames of the innermost stack recorded by pkg/errors.
func Backtrace(err error) []string {
	var deepest stackTracer
	for e := err; e != nil; e = pkgerrors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest == nil {
		return []string{}
	}

	stack := deepest.StackTrace()
	frames := make([]string, 0, len(stack))
	for _, f := range stack {
		frames = append(frames, fmt.Sprintf("%n (%s:%d)", f, f, f))
	}
	return frames
}

func className(err error) string {
	var panicErr *PanicError
	if pkgerrors.As(err, &panicErr) {
		return "PanicError"
	}
	root := err
	for next := pkgerrors.Unwrap(root); next != nil; next = pkgerrors.Unwrap(root) {
		root = next
	}
	return fmt.Sprintf("%T", root)
}

func truncate(frames []string, n int) []string {
	if len(frames) > n {
		return frames[:n]
	}
	return frames
}
