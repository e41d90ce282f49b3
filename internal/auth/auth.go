// Package auth extracts and checks API keys on incoming requests.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CallerKey returns the key a caller presented, looking at the "apikey"
// header, then X-API-Key, then an Authorization bearer token.
func CallerKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("apikey")); k != "" {
		return k
	}
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Allowed reports whether key matches one of keys. No configured keys means
// the endpoint is open.
func Allowed(key string, keys ...string) bool {
	open := true
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		open = false
		if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
			return true
		}
	}
	return open
}
