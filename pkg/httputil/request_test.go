package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"uniqueId": "jdoe@army.mil"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "jdoe@army.mil", dest["uniqueId"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{bad`))
	w := httptest.NewRecorder()

	var dest map[string]string
	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/bundle/versions/2026.08.1", nil)
	req = mux.SetURLVars(req, map[string]string{"version": "2026.08.1"})

	val, err := ParsePathString(req, "version")
	require.NoError(t, err)
	assert.Equal(t, "2026.08.1", val)

	_, err = ParsePathString(req, "missing")
	assert.Error(t, err)
}

func TestParsePathStringOrError(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/bundle/versions/", nil)
	w := httptest.NewRecorder()

	_, ok := ParsePathStringOrError(w, req, "version")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/audit/records?limit=25", nil)

	val, err := ParseQueryInt(req, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(req, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, val)

	req = httptest.NewRequest("GET", "/audit/records?limit=lots", nil)
	_, err = ParseQueryInt(req, "limit", 100)
	assert.Error(t, err)
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/audit/records?cacheHit=true", nil)

	val, err := ParseQueryBool(req, "cacheHit", false)
	require.NoError(t, err)
	assert.True(t, val)

	req = httptest.NewRequest("GET", "/audit/records?cacheHit=maybe", nil)
	_, err = ParseQueryBool(req, "cacheHit", false)
	assert.Error(t, err)
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest("GET", "/audit/records?from=2026-08-01T00:00:00Z", nil)

	val, err := ParseQueryTime(req, "from")
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), val.UTC())

	missing, err := ParseQueryTime(req, "to")
	require.NoError(t, err)
	assert.Nil(t, missing)

	req = httptest.NewRequest("GET", "/audit/records?from=yesterday", nil)
	_, err = ParseQueryTime(req, "from")
	assert.Error(t, err)
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(w, "doc-123", "resourceId"))

	w = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(w, "", "resourceId"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resourceId is required")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get("X-Request-ID")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1/authorize", nil))
	assert.NotEmpty(t, seen)

	req := httptest.NewRequest("POST", "/v1/authorize", nil)
	req.Header.Set("X-Request-ID", "req-supplied")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-supplied", w.Header().Get("X-Request-ID"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(tag("outer"), tag("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
