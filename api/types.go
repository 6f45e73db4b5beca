package api

import (
	"context"

	"basegate/domain"
	"basegate/objects"
)

// RecordStore abstracts the tabular store adapter for handlers.
type RecordStore interface {
	GetAll(ctx context.Context, logicalName string) ([]domain.Record, error)
	GetOne(ctx context.Context, logicalName, recordID string) (domain.Record, error)
	GetFiltered(ctx context.Context, anchor, logicalName string) ([]domain.Record, error)
	CreateMany(ctx context.Context, records []domain.Record, logicalName string) ([]domain.Record, error)
	UpdateMany(ctx context.Context, records []domain.Record, logicalName string) ([]domain.Record, error)
	DeleteMany(ctx context.Context, recordIDs []string, logicalName string) ([]string, error)
	UpdateOne(ctx context.Context, recordID string, fields map[string]any, logicalName string) (domain.Record, error)
	IncrementCounter(ctx context.Context) (int64, error)
	FindTaskByDisplayID(ctx context.Context, displayID string) (*domain.Record, error)
}

// Attachments abstracts the attachment relay for handlers.
type Attachments interface {
	StoreUpload(ctx context.Context, content []byte, suggestedName, contentType string) (string, error)
	Attach(ctx context.Context, recordID, fieldName, logicalTable string, ref domain.Attachment, mode objects.AttachMode) (domain.Record, error)
	StoreNamedContent(ctx context.Context, logicalTable, recordID, fieldName string, content []byte) error
	FetchNamedContentHybrid(ctx context.Context, logicalTable, recordID, fieldName string) ([]byte, error)
}

// Verifier scores a client-supplied abuse token. A nil Verifier disables
// scoring entirely.
type Verifier interface {
	Verify(ctx context.Context, token, action string) error
}

// Deduper suppresses duplicate room publishes by idempotency key.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, room, key string) (bool, error)
}
