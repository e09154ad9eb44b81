package domain

import "context"

// BlobWriter uploads an object to cold storage and returns its key.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// FillArchiver preserves the raw fill payload of an ingestion batch so any
// sync can be audited or replayed later. Archival is best-effort; a failed
// upload never fails the sync itself.
type FillArchiver interface {
	ArchiveFills(ctx context.Context, run SyncRun, fills []RawFill) (string, error)
}
