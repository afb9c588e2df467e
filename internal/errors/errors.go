package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/yukikurage/taskflow-api/internal/validation"
	"gorm.io/gorm"
)

// NotFoundError reports a lookup by primary key that found nothing.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Couldn't find %s with 'id'=%v", e.Resource, e.ID)
}

// NotFound reports that no resource exists with id.
func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError carries the field violations of a rejected create or update.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return "Validation failed: " + strings.Join(e.Violations, ", ")
}

// Invalid reports rejected field values.
func Invalid(violations validation.Violations) error {
	return &ValidationError{Violations: violations}
}

// BadRequestError reports missing or malformed request input.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// BadRequest reports malformed input; the message is rendered as is.
func BadRequest(format string, args ...any) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// ParameterMissing is raised when a required top-level body key is absent.
func ParameterMissing(param string) error {
	return BadRequest("param is missing or the value is empty: %s", param)
}

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "Authentication required"
	}
	return e.Message
}

// Unauthorized reports a missing or invalid identity. An empty message uses the default.
func Unauthorized(message string) error {
	return &UnauthorizedError{Message: message}
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return "Access denied"
	}
	return e.Message
}

// Forbidden reports an identity that may not act. An empty message uses the default.
func Forbidden(message string) error {
	return &ForbiddenError{Message: message}
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Recovered wraps a recovered panic value with the stack of the panicking goroutine.
func Recovered(value any) error {
	return pkgerrors.WithStack(&PanicError{Value: value})
}

func isRecordNotFound(err error) bool {
	return pkgerrors.Is(err, gorm.ErrRecordNotFound)
}
