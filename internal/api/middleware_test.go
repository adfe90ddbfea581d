package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID(t *testing.T) {
	t.Run("header and context carry the same id", func(t *testing.T) {
		var fromCtx string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = RequestIDFrom(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		header := rec.Header().Get("X-Request-ID")
		if header == "" {
			t.Fatal("X-Request-ID header not set")
		}
		if fromCtx != header {
			t.Fatalf("context id %q does not match header %q", fromCtx, header)
		}
	})

	t.Run("ids are unique per request", func(t *testing.T) {
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		seen := map[string]bool{}
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			id := rec.Header().Get("X-Request-ID")
			if seen[id] {
				t.Fatalf("duplicate request id %q", id)
			}
			seen[id] = true
		}
	})

	t.Run("missing middleware yields empty id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if got := RequestIDFrom(r.Context()); got != "" {
			t.Fatalf("expected empty id, got %q", got)
		}
	})
}
