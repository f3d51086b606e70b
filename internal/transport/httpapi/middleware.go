package httpapi

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/domizei385/pogoAccountServer/internal/concurrency"
)

// maxBodyBytes caps request bodies at 16 MB.
const maxBodyBytes = 16 * 1000 * 1000

// basicAuth enforces the fixed HTTP Basic Auth credentials required on every
// route, using a constant-time comparison to avoid leaking credential
// length/prefix through timing.
func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				w.Header().Set("WWW-Authenticate", `Basic realm="accountbroker"`)
				writeFail(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody wraps the request body in http.MaxBytesReader.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// concurrencyGate bounds how many requests are processed at once (see
// internal/concurrency).
func concurrencyGate(gate *concurrency.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := gate.Acquire(r.Context())
			if err != nil {
				log.Printf("[http] rejecting request, concurrency gate: %v", err)
				writeFail(w, http.StatusServiceUnavailable, map[string]string{"error": "server busy"})
				return
			}
			defer release()
			next.ServeHTTP(w, r)
		})
	}
}

// logRequests logs each request's method and path.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[http] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
