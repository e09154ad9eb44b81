// Package crypto provides HMAC request signing for the exchange APIs and
// encryption at rest for stored API secrets.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// BybitAuth holds the credentials for Bybit v5 signed requests.
type BybitAuth struct {
	Key        string
	Secret     string
	RecvWindow int // milliseconds
}

// Headers returns the HTTP headers for a Bybit v5 request. payload is the
// raw query string for GET requests or the JSON body for POST requests.
// The signature is HMAC-SHA256(secret, timestamp+apiKey+recvWindow+payload)
// encoded as hex.
//
// Returned header keys:
//   - X-BAPI-API-KEY
//   - X-BAPI-TIMESTAMP
//   - X-BAPI-RECV-WINDOW
//   - X-BAPI-SIGN
func (a *BybitAuth) Headers(payload string) map[string]string {
	return a.HeadersAt(payload, time.Now().UnixMilli())
}

// HeadersAt is like Headers but lets the caller supply the millisecond
// timestamp (useful for deterministic testing).
func (a *BybitAuth) HeadersAt(payload string, unixMs int64) map[string]string {
	ts := strconv.FormatInt(unixMs, 10)
	rw := strconv.Itoa(a.RecvWindow)

	message := ts + a.Key + rw + payload
	sig := hmacSHA256Hex([]byte(a.Secret), message)

	return map[string]string{
		"X-BAPI-API-KEY":     a.Key,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": rw,
		"X-BAPI-SIGN":        sig,
	}
}

// OKXAuth holds the credentials for OKX v5 signed requests. OKX requires a
// passphrase in addition to the key pair.
type OKXAuth struct {
	Key        string
	Secret     string
	Passphrase string
}

// Headers returns the HTTP headers for an OKX v5 request. requestPath must
// include the query string; body is empty for GET requests. The signature
// is HMAC-SHA256(secret, timestamp+method+requestPath+body) encoded as
// base64, with the timestamp in ISO 8601 UTC with millisecond precision.
//
// Returned header keys:
//   - OK-ACCESS-KEY
//   - OK-ACCESS-SIGN
//   - OK-ACCESS-TIMESTAMP
//   - OK-ACCESS-PASSPHRASE
func (a *OKXAuth) Headers(method, requestPath, body string) map[string]string {
	return a.HeadersAt(method, requestPath, body, time.Now().UTC())
}

// HeadersAt is like Headers but lets the caller supply the timestamp.
func (a *OKXAuth) HeadersAt(method, requestPath, body string, at time.Time) map[string]string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")

	message := ts + method + requestPath + body
	sig := hmacSHA256Base64([]byte(a.Secret), message)

	return map[string]string{
		"OK-ACCESS-KEY":        a.Key,
		"OK-ACCESS-SIGN":       sig,
		"OK-ACCESS-TIMESTAMP":  ts,
		"OK-ACCESS-PASSPHRASE": a.Passphrase,
	}
}

// String returns a redacted representation suitable for logging.
func (a *BybitAuth) String() string {
	return fmt.Sprintf("BybitAuth{key=%s}", redact(a.Key))
}

// String returns a redacted representation suitable for logging.
func (a *OKXAuth) String() string {
	return fmt.Sprintf("OKXAuth{key=%s}", redact(a.Key))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result as a lowercase hex string.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
