package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/validation"
	"gorm.io/gorm"
)

func newTestClassifier(production bool) (*Classifier, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewClassifier(production, logger, nil), &buf
}

func TestClassify_StatusMapping(t *testing.T) {
	cl, _ := newTestClassifier(true)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", NotFound("Task", 5), http.StatusNotFound, "Record not found: Couldn't find Task with 'id'=5"},
		{"gorm not found", fmt.Errorf("failed to find task: %w", gorm.ErrRecordNotFound), http.StatusNotFound, "Record not found: failed to find task: record not found"},
		{"validation", Invalid(validation.Violations{"Title can't be blank"}), http.StatusUnprocessableEntity, "Validation failed"},
		{"missing param", ParameterMissing("task"), http.StatusBadRequest, "param is missing or the value is empty: task"},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized, "Authentication required"},
		{"forbidden", Forbidden(""), http.StatusForbidden, "Access denied"},
		{"internal", fmt.Errorf("db exploded"), http.StatusInternalServerError, InternalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := cl.Classify(tt.err)
			assert.Equal(t, tt.status, cls.Status)
			assert.Equal(t, tt.message, cls.Message)
		})
	}
}

func TestClassify_ValidationErrorsListed(t *testing.T) {
	cl, _ := newTestClassifier(true)

	cls := cl.Classify(Invalid(validation.Violations{"Title can't be blank", "Status is not included in the list"}))

	assert.Equal(t, []any{"Title can't be blank", "Status is not included in the list"}, cls.Errors)
}

func TestClassify_WrappedBadRequestKeepsOuterMessage(t *testing.T) {
	cl, _ := newTestClassifier(true)

	err := fmt.Errorf("Registration failed: %w", BadRequest("Missing required fields: email"))
	cls := cl.Classify(err)

	assert.Equal(t, http.StatusBadRequest, cls.Status)
	assert.Equal(t, "Registration failed: Missing required fields: email", cls.Message)
}

func TestClassify_InternalOutsideProduction(t *testing.T) {
	cl, _ := newTestClassifier(false)

	cls := cl.Classify(pkgerrors.New("db exploded"))

	assert.Equal(t, http.StatusInternalServerError, cls.Status)
	assert.Equal(t, "db exploded", cls.Message)
	require.Len(t, cls.Errors, 1)
	frames := cls.Errors[0].(gin.H)["backtrace"].([]string)
	assert.NotEmpty(t, frames)
	assert.LessOrEqual(t, len(frames), ResponseBacktraceFrames)
	assert.Contains(t, frames[0], "classifier_test.go")
}

func TestClassify_InternalInProductionHidesDetails(t *testing.T) {
	cl, _ := newTestClassifier(true)

	cls := cl.Classify(pkgerrors.New("secret connection string leaked"))

	assert.Equal(t, InternalErrorMessage, cls.Message)
	assert.Empty(t, cls.Errors)
}

func TestClassify_Panic(t *testing.T) {
	cl, _ := newTestClassifier(false)

	var err error
	func() {
		defer func() {
			err = Recovered(recover())
		}()
		panic("kaboom")
	}()

	cls := cl.Classify(err)
	assert.Equal(t, http.StatusInternalServerError, cls.Status)
	assert.Equal(t, "kaboom", cls.Message)
	assert.Equal(t, "PanicError", cls.Class)
}

func TestHandle_RendersEnvelopeAndLogsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cl, logs := newTestClassifier(true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/tasks/5", nil)
	c.Set(constants.ContextKeyRequestID, "req-1")
	c.Set(constants.ContextKeyUserID, uint64(9))

	cl.Handle(c, NotFound("Task", 5))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Record not found: Couldn't find Task with 'id'=5", body["error"])
	assert.Equal(t, []any{}, body["errors"])

	lines := bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "exception", record["event"])
	assert.Equal(t, "NotFoundError", record["exception_class"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, float64(9), record["user_id"])
	assert.Equal(t, "/api/v1/tasks/5", record["path"])
	assert.Equal(t, http.MethodGet, record["method"])
}

func TestHandle_InternalLogsAtError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cl, logs := newTestClassifier(true)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)

	cl.Handle(c, pkgerrors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logs.String(), `"level":"ERROR"`)
}
