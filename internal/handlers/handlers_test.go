package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
)

func contextWithBody(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestReadBody(t *testing.T) {
	for _, body := range []string{"", "  \n"} {
		f, err := readBody(contextWithBody(body))
		require.NoError(t, err)
		assert.Empty(t, f)
	}

	f, err := readBody(contextWithBody(`{"title":"a","description":null}`))
	require.NoError(t, err)
	assert.True(t, f.has("description"))
	assert.True(t, f.isNull("description"))
	assert.False(t, f.has("status"))

	var title string
	require.NoError(t, f.decode("title", &title))
	assert.Equal(t, "a", title)

	var count int
	var badRequest *apierrors.BadRequestError
	assert.ErrorAs(t, f.decode("title", &count), &badRequest)

	for _, body := range []string{"null", "[1,2]", `{"title":`} {
		_, err := readBody(contextWithBody(body))
		require.ErrorAs(t, err, &badRequest, body)
		assert.Equal(t, "Invalid request body", badRequest.Message)
	}
}

func TestRequireParam(t *testing.T) {
	nested, err := requireParam(contextWithBody(`{"task":{"title":"a"}}`), "task")
	require.NoError(t, err)
	assert.True(t, nested.has("title"))

	for _, body := range []string{`{}`, `{"task":null}`, `{"task":{}}`, `{"task":"x"}`} {
		_, err := requireParam(contextWithBody(body), "task")
		assert.EqualError(t, err, "param is missing or the value is empty: task", body)
	}
}
