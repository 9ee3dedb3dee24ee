package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// echo answers 200 with the request body.
var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
})

func TestAuthAPIKey(t *testing.T) {
	h := Auth("s3cret", nil, nil)(echo)

	tests := []struct {
		name   string
		header func(r *http.Request)
		want   int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("X-API-Key", "s3cret") }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
			tt.header(r)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthRequestSignature(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)
	signer := &crypto.RequestAuth{Secret: []byte("hmac-secret"), Window: 30 * time.Second}
	h := Auth("", signer, func() time.Time { return now })(echo)
	body := `{"caller":"0x01","amount":5}`

	signed := func(ts time.Time, b string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/markets/x/split", strings.NewReader(b))
		for k, v := range signer.Headers(http.MethodPost, "/api/markets/x/split", []byte(body), ts) {
			r.Header.Set(k, v)
		}
		return r
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signed(now, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String(), "body must be restored for the handler")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signed(now, `{"caller":"0x01","amount":500}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tampered body")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signed(now.Add(-time.Minute), body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "stale timestamp")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not signed")
}

type stubLimiter struct {
	decision domain.RateDecision
	err      error
	keys     []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (domain.RateDecision, error) {
	l.keys = append(l.keys, key)
	return l.decision, l.err
}

func TestRateLimit(t *testing.T) {
	t.Run("rejects over limit", func(t *testing.T) {
		l := &stubLimiter{decision: domain.RateDecision{Allowed: false, Used: 10}}
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		RateLimit(l, 10, time.Minute, quiet)(echo).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"api:203.0.113.7"}, l.keys)
	})
	t.Run("reports remaining budget", func(t *testing.T) {
		l := &stubLimiter{decision: domain.RateDecision{Allowed: true, Used: 3}}
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "not-an-ip")
		r.Header.Set("X-Real-IP", "198.51.100.4")
		RateLimit(l, 10, time.Minute, quiet)(echo).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"api:198.51.100.4"}, l.keys)
	})
	t.Run("fails open", func(t *testing.T) {
		l := &stubLimiter{err: errors.New("redis down")}
		rec := httptest.NewRecorder()
		RateLimit(l, 10, time.Minute, quiet)(echo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRecover(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	Recover(quiet)(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	abort := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) })
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Recover(quiet)(abort).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLoggingRequestID(t *testing.T) {
	var seen string
	h := Logging(quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "client-id", seen)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://ops.example"})(echo)

	r := httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	r.Header.Set("Origin", "https://ops.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ops.example", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
