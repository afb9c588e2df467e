package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

// fields holds the members of a request object keyed by name.
// A key mapped to JSON null is present but null.
type fields map[string]json.RawMessage

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f fields) isNull(key string) bool {
	raw, ok := f[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decode unmarshals the value under key into dst. Absent keys leave dst untouched.
func (f fields) decode(key string, dst any) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apierrors.BadRequest("Invalid value for %s", key)
	}
	return nil
}

// readBody binds the request body as a JSON object. An empty body is an empty object.
func readBody(c *gin.Context) (fields, error) {
	var f fields
	if err := c.ShouldBindJSON(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return fields{}, nil
		}
		return nil, apierrors.BadRequest("Invalid request body")
	}
	if f == nil {
		return nil, apierrors.BadRequest("Invalid request body")
	}
	return f, nil
}

// requireParam returns the object nested under the top-level key param.
func requireParam(c *gin.Context, param string) (fields, error) {
	body, err := readBody(c)
	if err != nil {
		return nil, err
	}
	if !body.has(param) || body.isNull(param) {
		return nil, apierrors.ParameterMissing(param)
	}

	var nested fields
	if err := json.Unmarshal(body[param], &nested); err != nil || len(nested) == 0 {
		return nil, apierrors.ParameterMissing(param)
	}
	return nested, nil
}

func parseID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apierrors.BadRequest("Invalid id: %s", c.Param("id"))
	}
	return id, nil
}

// queryUint parses an optional unsigned query parameter.
func queryUint(c *gin.Context, key string) (*uint64, error) {
	value, ok := c.GetQuery(key)
	if !ok || value == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, apierrors.BadRequest("Invalid %s: %s", key, value)
	}
	return &n, nil
}

// page converts pagination params into the page/size pair services take;
// zeroes select the whole collection.
func page(params utils.PaginationParams) (int, int) {
	if !params.Enabled {
		return 0, 0
	}
	return params.Page, params.Limit
}
