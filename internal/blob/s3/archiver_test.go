package s3blob

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksenkin/tradediary/internal/domain"
)

type captureWriter struct {
	key         string
	data        []byte
	contentType string
}

func (w *captureWriter) Write(_ context.Context, key string, data []byte, contentType string) (string, error) {
	w.key = key
	w.data = data
	w.contentType = contentType
	return key, nil
}

func TestArchiveFills(t *testing.T) {
	t.Parallel()

	w := &captureWriter{}
	a := NewArchiver(w)

	run := domain.SyncRun{
		ID:        "3f1a0c9e-0000-0000-0000-000000000000",
		OwnerID:   42,
		Exchange:  domain.ExchangeBybit,
		StartedAt: 1700000000000,
	}
	fills := []domain.RawFill{
		{Symbol: "BTCUSDT", Side: "Buy", ExecID: "e1", Quantity: 1, Price: 50000, Time: 1},
		{Symbol: "BTCUSDT", Side: "Sell", ExecID: "e2", Quantity: 1, Price: 51000, Time: 2},
	}

	key, err := a.ArchiveFills(context.Background(), run, fills)
	require.NoError(t, err)
	assert.Equal(t, "fills/42/bybit/1700000000000_3f1a0c9e-0000-0000-0000-000000000000.jsonl", key)
	assert.Equal(t, "application/x-ndjson", w.contentType)

	// One JSON object per line.
	lines := strings.Split(strings.TrimSpace(string(w.data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"exec_id":"e1"`)
	assert.Contains(t, lines[1], `"exec_id":"e2"`)
}

func TestArchiveFillsSkipsEmptyBatches(t *testing.T) {
	t.Parallel()

	w := &captureWriter{}
	a := NewArchiver(w)

	key, err := a.ArchiveFills(context.Background(), domain.SyncRun{OwnerID: 1}, nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, w.key)
}
