package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"takaro-dashboard-api/pkg/apierror"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "meta")
}

func TestList(t *testing.T) {
	rec := httptest.NewRecorder()
	List(rec, []int{1, 2, 3})

	body := decode(t, rec)
	assert.Equal(t, float64(3), body["meta"].(map[string]any)["total"])
}

func TestErrorUnwrapsAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("handler: %w", apierror.Upstream("boom")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "UPSTREAM_ERROR", body["error"].(map[string]any)["code"])
}

func TestErrorDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("unexpected"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]any)["code"])
}
