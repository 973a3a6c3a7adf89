package handlers

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIRate  = 10
	DefaultAPIBurst = 50
)

// AuthMiddleware requires the X-API-Key header (or api_key query parameter)
// to match apiKey. An empty apiKey disables the check.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware rejects requests once limiter runs dry.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewAPILimiter is the global admin API limiter: 10 req/sec, burst of 50.
func NewAPILimiter() *rate.Limiter {
	return rate.NewLimiter(DefaultAPIRate, DefaultAPIBurst)
}
