package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

func newContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(constants.ContextKeyRequestID, "req-123")
	return c, w
}

func freezeTime(t *testing.T) {
	t.Helper()
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("JST", 9*60*60))
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	freezeTime(t)
	c, w := newContext(t)

	OK(c, gin.H{"id": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": float64(1)}, body["data"])
	assert.NotContains(t, body, "message")
	assert.Equal(t, map[string]any{
		"request_id": "req-123",
		"timestamp":  "2024-05-05T22:08:09Z",
	}, body["meta"])
}

func TestCreated(t *testing.T) {
	c, w := newContext(t)

	Created(c, gin.H{"id": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, CreatedMessage, body["message"])
}

func TestOK_WithPagination(t *testing.T) {
	c, w := newContext(t)

	OK(c, []int{}, WithPagination(utils.PaginationResponse{Page: 2, Limit: 10, Total: 42}))

	body := decode(t, w)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, map[string]any{"page": float64(2), "limit": float64(10), "total": float64(42)}, meta["pagination"])
	assert.Equal(t, "req-123", meta["request_id"])
	assert.Equal(t, []any{}, body["data"])
}

func TestWithMeta_CannotOverrideRequestID(t *testing.T) {
	c, w := newContext(t)

	OK(c, nil, WithMeta("request_id", "spoofed"))

	meta := decode(t, w)["meta"].(map[string]any)
	assert.Equal(t, "req-123", meta["request_id"])
}

func TestError(t *testing.T) {
	c, w := newContext(t)

	Error(c, http.StatusNotFound, "Record not found: missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Record not found: missing", body["error"])
	assert.Equal(t, []any{}, body["errors"])
	assert.Contains(t, body["meta"], "timestamp")
}
