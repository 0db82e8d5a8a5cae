package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/api"
)

// APIKeyAuth guards the producer ingest endpoint. Security monitors post
// alerts with a static key instead of an operator session.
type APIKeyAuth struct {
	mu     sync.RWMutex
	keys   []string
	logger *zap.Logger
}

// NewAPIKeyAuth creates the middleware. With no keys every request is
// rejected.
func NewAPIKeyAuth(keys []string, logger *zap.Logger) *APIKeyAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &APIKeyAuth{logger: logger.Named("ingest_auth")}
	for _, k := range keys {
		a.AddAPIKey(k)
	}
	return a
}

// Wrap wraps an http.Handler with API key authentication
func (a *APIKeyAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			a.unauthorized(w, "Missing API key")
			return
		}
		if !a.valid(key) {
			a.logger.Warn("invalid API key attempt", zap.String("remote_addr", r.RemoteAddr))
			a.unauthorized(w, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractAPIKey supports the X-API-Key header and "ApiKey <key>"
// Authorization values
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "ApiKey "); ok {
		return strings.TrimSpace(key)
	}
	return ""
}

// valid compares in constant time against every configured key
func (a *APIKeyAuth) valid(provided string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ok := false
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(k)) == 1 {
			ok = true
		}
	}
	return ok
}

func (a *APIKeyAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "ApiKey realm=\"lexwatch\"")
	api.RespondError(w, http.StatusUnauthorized, message)
}

// AddAPIKey adds a key; blank and duplicate keys are ignored
func (a *APIKeyAuth) AddAPIKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.keys {
		if k == key {
			return
		}
	}
	a.keys = append(a.keys, key)
}

// RemoveAPIKey removes a key
func (a *APIKeyAuth) RemoveAPIKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.keys[:0]
	for _, k := range a.keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	a.keys = kept
}

// Enabled reports whether any key is configured
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys) > 0
}
