package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBybitHeaders(t *testing.T) {
	t.Parallel()

	auth := &BybitAuth{Key: "test-key", Secret: "test-secret", RecvWindow: 5000}
	h := auth.HeadersAt("category=linear&symbol=BTCUSDT", 1700000000000)

	assert.Equal(t, "test-key", h["X-BAPI-API-KEY"])
	assert.Equal(t, "1700000000000", h["X-BAPI-TIMESTAMP"])
	assert.Equal(t, "5000", h["X-BAPI-RECV-WINDOW"])
	assert.Equal(t,
		"9a7c8cfd6ba1a7c498aa4dd5a7f9cfbba01fcb6eebae734ffe0d775870a1a3fb",
		h["X-BAPI-SIGN"])
}

func TestOKXHeaders(t *testing.T) {
	t.Parallel()

	auth := &OKXAuth{Key: "test-key", Secret: "test-secret", Passphrase: "pass"}
	at := time.Unix(1700000000, 0).UTC()
	h := auth.HeadersAt("GET", "/api/v5/trade/fills-history?instType=SPOT", "", at)

	assert.Equal(t, "test-key", h["OK-ACCESS-KEY"])
	assert.Equal(t, "2023-11-14T22:13:20.000Z", h["OK-ACCESS-TIMESTAMP"])
	assert.Equal(t, "pass", h["OK-ACCESS-PASSPHRASE"])
	assert.Equal(t, "4Ue9Y0Q8yDuu9vqJwKNT/K5PG5dD6Itenj7aaq+DuHA=", h["OK-ACCESS-SIGN"])
}

func TestAuthStringRedactsCredentials(t *testing.T) {
	t.Parallel()

	b := &BybitAuth{Key: "abcdef123456", Secret: "supersecret"}
	assert.Equal(t, "BybitAuth{key=abcd****}", b.String())
	assert.NotContains(t, b.String(), "supersecret")

	o := &OKXAuth{Key: "ok", Secret: "supersecret"}
	assert.Equal(t, "OKXAuth{key=****}", o.String())
}
