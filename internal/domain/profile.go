package domain

// Exchange identifiers accepted by profile registration and sync.
const (
	ExchangeBybit = "bybit"
	ExchangeOKX   = "okx"
)

// Profile is an owning account: one set of exchange API credentials plus
// the bearer token (PublicID) that authenticates diary API calls. All
// position queries and all FIFO matching are partitioned by profile.
type Profile struct {
	ID         int64
	PublicID   string // bearer token, random hex
	Exchange   string // "bybit" or "okx"
	APIKey     string
	APISecret  string // encrypted at rest; decrypted only for signing
	Passphrase string // OKX only; encrypted at rest
	BaseURL    string
	RecvWindow int   // ms, clamped to [1000, 15000]
	LastSyncAt int64 // ms since epoch; 0 when never synced
	CreatedAt  int64
}

// MaskedAPIKey returns the API key with only the first and last four
// characters visible, for echoing back in API responses.
func (p *Profile) MaskedAPIKey() string {
	if len(p.APIKey) <= 8 {
		return "****"
	}
	return p.APIKey[:4] + "..." + p.APIKey[len(p.APIKey)-4:]
}
