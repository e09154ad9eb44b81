package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ksenkin/tradediary/internal/domain"
)

// Archiver implements domain.FillArchiver by serializing the raw fill
// payload of one ingestion batch to JSONL and uploading it to S3. The
// archive is the audit trail for any sync: positions can be recomputed from
// it if a matching bug is found later.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver over the given blob writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveFills uploads the fills of one sync run and returns the object key.
// Keys are partitioned per owner and exchange:
//
//	fills/42/bybit/1700000000000_3f1a....jsonl
func (a *Archiver) ArchiveFills(ctx context.Context, run domain.SyncRun, fills []domain.RawFill) (string, error) {
	if len(fills) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	key := fmt.Sprintf("fills/%d/%s/%d_%s.jsonl", run.OwnerID, run.Exchange, run.StartedAt, run.ID)
	if _, err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive fills upload: %w", err)
	}
	return key, nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.FillArchiver = (*Archiver)(nil)
