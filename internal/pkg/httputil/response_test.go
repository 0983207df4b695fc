package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

func TestError_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "validation_failed", "email: email is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Code)
	assert.Equal(t, "email: email is required", body.Error)
}

func TestInternalError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, logger.Discard(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestDecode(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"hi"}`))
	require.NoError(t, Decode(req, &dst))
	assert.Equal(t, "hi", dst.Title)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.Error(t, Decode(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	assert.Error(t, Decode(req, &dst))
}
