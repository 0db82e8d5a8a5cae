package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	auth := NewAPIKeyAuth([]string{"key-1", " key-2 ", ""}, zap.NewNop())
	handler := auth.Wrap(okHandler())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing key", want: http.StatusUnauthorized},
		{name: "X-API-Key", header: "X-API-Key", value: "key-1", want: http.StatusOK},
		{name: "trimmed configured key", header: "X-API-Key", value: "key-2", want: http.StatusOK},
		{name: "ApiKey authorization", header: "Authorization", value: "ApiKey key-2", want: http.StatusOK},
		{name: "bearer is not an API key", header: "Authorization", value: "Bearer key-1", want: http.StatusUnauthorized},
		{name: "wrong key", header: "X-API-Key", value: "nope", want: http.StatusUnauthorized},
		{name: "case sensitive", header: "X-API-Key", value: "KEY-1", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest/alerts", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestAPIKeyAuth_NoKeysRejectsEverything(t *testing.T) {
	auth := NewAPIKeyAuth(nil, nil)
	if auth.Enabled() {
		t.Fatal("expected auth without keys to be disabled")
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/alerts", nil)
	req.Header.Set("X-API-Key", "")
	rec := httptest.NewRecorder()
	auth.Wrap(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyAuth_AddRemove(t *testing.T) {
	auth := NewAPIKeyAuth([]string{"a"}, zap.NewNop())
	auth.AddAPIKey("b")
	auth.AddAPIKey("b")
	auth.RemoveAPIKey("a")
	auth.RemoveAPIKey("missing")

	if !auth.valid("b") || auth.valid("a") {
		t.Error("unexpected key set after add/remove")
	}
	if len(auth.keys) != 1 {
		t.Errorf("expected 1 key, got %d", len(auth.keys))
	}
}

func TestAPIKeyAuth_ConcurrentAccess(t *testing.T) {
	auth := NewAPIKeyAuth([]string{"stable"}, zap.NewNop())
	handler := auth.Wrap(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/ingest/alerts", nil)
			req.Header.Set("X-API-Key", "stable")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		}()
		go func() {
			defer wg.Done()
			auth.AddAPIKey("temp")
			auth.RemoveAPIKey("temp")
		}()
	}
	wg.Wait()
}
