package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_WithoutAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))

	h := build()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "API key is not configured."}`, rec.Body.String())
}

func TestBuild_RejectsGet(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")

	h := build()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/generate", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
	assert.Equal(t, "Method GET Not Allowed", rec.Body.String())
}

func TestHandler_UsesDefaultHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodPut, "/api/generate", nil))

	// Depending on the environment the key check or the method check answers first.
	assert.Contains(t, []int{http.StatusInternalServerError, http.StatusMethodNotAllowed}, rec.Code)
}

func TestBuild_InvalidConfigKeepsKeyErrorOut(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("RETRY_MAX_RETRIES", "three")

	h := build()
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/generate", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error": "Internal server error."}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "API key")
	}
}
