// Package middleware holds the HTTP middleware chain of the operator API.
package middleware

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/marketengine/internal/crypto"
)

// maxSignedBody bounds the request body read for signature checks.
const maxSignedBody = 1 << 20

// Auth requires the operator API key as a Bearer token or X-API-Key header.
// An empty apiKey disables the check. When signer is non-nil, mutating
// requests must also carry a valid request signature.
func Auth(apiKey string, signer *crypto.RequestAuth, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" {
				token := extractToken(r)
				if token == "" {
					writeUnauthorized(w, "missing authentication token")
					return
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
					writeUnauthorized(w, "invalid authentication token")
					return
				}
			}

			if signer != nil && mutating(r.Method) {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
				if err != nil {
					writeUnauthorized(w, "unreadable request body")
					return
				}
				r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(body))

				err = signer.Verify(r.Method, r.URL.Path, body,
					r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature), now())
				if err != nil {
					writeUnauthorized(w, "invalid request signature")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// extractToken reads "Authorization: Bearer <token>" or X-API-Key.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg)
}
