package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"
)

// Operator API request-signing headers.
const (
	HeaderTimestamp = "X-Engine-Timestamp"
	HeaderSignature = "X-Engine-Signature"
)

var (
	errStaleRequest = errors.New("crypto: request timestamp outside window")
	errBadSignature = errors.New("crypto: request signature mismatch")
)

// RequestAuth signs and verifies operator API requests with
// HMAC-SHA256(secret, timestamp+method+path+body), base64 encoded.
type RequestAuth struct {
	Secret []byte
	Window time.Duration
}

// Headers returns the signing headers for a request made at ts.
func (a *RequestAuth) Headers(method, path string, body []byte, ts time.Time) map[string]string {
	stamp := strconv.FormatInt(ts.Unix(), 10)
	return map[string]string{
		HeaderTimestamp: stamp,
		HeaderSignature: a.sign(stamp, method, path, body),
	}
}

// Verify checks a received signature against the request and the clock.
func (a *RequestAuth) Verify(method, path string, body []byte, stamp, signature string, now time.Time) error {
	unix, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return errStaleRequest
	}
	if d := now.Sub(time.Unix(unix, 0)); d > a.Window || d < -a.Window {
		return errStaleRequest
	}
	want := a.sign(stamp, method, path, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return errBadSignature
	}
	return nil
}

func (a *RequestAuth) sign(stamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, a.Secret)
	mac.Write([]byte(stamp))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
