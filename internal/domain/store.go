package domain

import (
	"context"
	"time"
)

// ListOpts carries standard pagination and time filtering parameters.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ActionStore persists orchestrated action records.
type ActionStore interface {
	Create(ctx context.Context, a Action) error
	UpdateStatus(ctx context.Context, requestID string, status ActionStatus, txHash string) error
	SetError(ctx context.Context, requestID string, code, detail string) error
	GetByID(ctx context.Context, requestID string) (Action, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Action, error)
	ListByStatus(ctx context.Context, status ActionStatus, opts ListOpts) ([]Action, error)
	ListBefore(ctx context.Context, before time.Time) ([]Action, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore appends and queries the audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
