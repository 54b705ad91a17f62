// Package store persists the operator's inventory (entries, media,
// categories) and the durable run records the import pipeline checkpoints
// against.
package store

import (
	"context"

	"github.com/stayguide/guide-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	OwnerID string          `json:"owner_id,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// InventoryStore holds the operator's existing entries and receives the
// entries, media, and category records an import creates.
type InventoryStore interface {
	ExistingFingerprints(ctx context.Context, ownerID string) ([]model.Fingerprint, error)
	CreateEntry(ctx context.Context, entry model.Entry) (string, error)
	CreateMedia(ctx context.Context, entryID, url string, order int) error
	// FindCategoryBySlug returns "" with a nil error when no record exists.
	FindCategoryBySlug(ctx context.Context, ownerID, slug string) (string, error)
	CreateCategory(ctx context.Context, ownerID, label, icon, slug string) (string, error)
}

// RunStore checkpoints pipeline runs so an interrupted import can resume from
// the last completed item instead of restarting the batch.
type RunStore interface {
	CreateRun(ctx context.Context, run model.Run, items []model.Candidate) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, outcome *model.Outcome) error
	MarkItem(ctx context.Context, runID string, index int, status model.ItemStatus, entryID, errReason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListItems(ctx context.Context, runID string) ([]model.RunItem, error)
}

// Store is the combined persistence interface used by the CLI.
type Store interface {
	InventoryStore
	RunStore

	Migrate(ctx context.Context) error
	Close() error
}
