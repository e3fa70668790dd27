package middleware_test

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirepulse/visitor-telemetry/internal/adapters/memory"
	"github.com/hirepulse/visitor-telemetry/internal/api/middleware"
	"github.com/hirepulse/visitor-telemetry/internal/application/loaders"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
})

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://careers.acme.io", "*"},
		{"listed origin echoed", []string{"https://careers.acme.io"}, "https://careers.acme.io", "https://careers.acme.io"},
		{"unlisted origin", []string{"https://careers.acme.io"}, "https://evil.io", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/track/visitor", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			middleware.CORSMiddleware(tt.allowed)(okHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/visitors/v1/status", nil)
	req.Header.Set("Origin", "https://admin.acme.io")
	w := httptest.NewRecorder()

	middleware.CORSMiddleware([]string{"*"})(okHandler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Empty(t, w.Body.String())
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, middleware.ParseOrigins(""))
	assert.Equal(t, []string{"https://a.io", "https://b.io"}, middleware.ParseOrigins(" https://a.io, ,https://b.io "))
}

func TestCompression(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	w := httptest.NewRecorder()

	middleware.Compression(okHandler).ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestCompression_SkipsStreamsAndWrites(t *testing.T) {
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/stream/presence", nil),
		httptest.NewRequest(http.MethodPost, "/api/track/event", nil),
	} {
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()

		middleware.Compression(okHandler).ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"), req.URL.Path)
		assert.Equal(t, `{"ok":true}`, w.Body.String())
	}
}

func TestLoggingMiddleware_PreservesStatusAndFlush(t *testing.T) {
	handler := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, ok := w.(http.Flusher)
		assert.True(t, ok)
	}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestLoadersMiddleware(t *testing.T) {
	store := memory.NewStore()
	var seen *loaders.Loaders
	handler := middleware.LoadersMiddleware(store.Visitors())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = loaders.For(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/presence/live", nil))

	require.NotNil(t, seen)
	assert.NotNil(t, seen.VisitorLoader)
}

func TestObservabilityMiddleware_ReadsMatchedPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/visitors/{visitorId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	w := httptest.NewRecorder()

	middleware.ObservabilityMiddleware(nil)(mux).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/visitors/v1", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
