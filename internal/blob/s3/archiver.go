package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cinafi/leverbot/internal/domain"
)

// multipartThreshold switches the upload to the multipart manager for large
// exports.
const multipartThreshold = 8 * 1024 * 1024

// ActionArchiveSource is the slice of the action store the archiver needs.
type ActionArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Action, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditArchiveSource is the slice of the audit store the archiver needs.
type AuditArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// archiveWriter covers the two upload paths the archiver picks between.
type archiveWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// archiveVerifier confirms an uploaded object exists before rows are pruned.
type archiveVerifier interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchiveImpl implements domain.Archiver: rows older than the cutoff are
// exported to JSONL in object storage, then pruned from the primary store.
// Pruning only happens after the upload has been verified.
type ArchiveImpl struct {
	writer  archiveWriter
	reader  archiveVerifier
	actions ActionArchiveSource
	audit   AuditArchiveSource
	logger  *slog.Logger
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer archiveWriter, reader archiveVerifier, actions ActionArchiveSource, audit AuditArchiveSource, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		reader:  reader,
		actions: actions,
		audit:   audit,
		logger:  logger.With("component", "archiver"),
	}
}

// ArchiveActions exports actions created before the cutoff and deletes them
// once the export is confirmed. It returns the number of archived rows.
func (a *ArchiveImpl) ArchiveActions(ctx context.Context, before time.Time) (int64, error) {
	actions, err := a.actions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive actions query: %w", err)
	}
	if len(actions) == 0 {
		return 0, nil
	}

	path := archivePath("actions", before)
	if err := exportJSONL(ctx, a, path, actions); err != nil {
		return 0, err
	}

	deleted, err := a.actions.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(actions)), fmt.Errorf("s3blob: prune archived actions: %w", err)
	}

	a.logger.Info("actions archived", "path", path, "exported", len(actions), "pruned", deleted)
	return int64(len(actions)), nil
}

// ArchiveAudit exports audit entries created before the cutoff and deletes
// them once the export is confirmed. It returns the number of archived rows.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	path := archivePath("audit", before)
	if err := exportJSONL(ctx, a, path, entries); err != nil {
		return 0, err
	}

	deleted, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: prune archived audit entries: %w", err)
	}

	a.logger.Info("audit archived", "path", path, "exported", len(entries), "pruned", deleted)
	return int64(len(entries)), nil
}

// exportJSONL serializes records to JSONL, uploads them, and verifies the
// object landed before the caller prunes anything.
func exportJSONL[T any](ctx context.Context, a *ArchiveImpl, path string, records []T) error {
	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	if int64(len(buf)) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive upload: %w", err)
	}

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive verify: %w", err)
	}
	if !exists {
		return fmt.Errorf("s3blob: archive verify: object %s missing after upload", path)
	}
	return nil
}

// archivePath partitions exports by the day of the cutoff:
//
//	archive/actions/2026/09/01.jsonl
//	archive/audit/2026/09/01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006/01/02"))
}

// marshalJSONL serializes a slice as newline-delimited JSON, one compact
// object per line.
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

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
