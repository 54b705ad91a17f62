package model

import "time"

// RunStatus is the lifecycle state of a durable import run.
type RunStatus string

const (
	RunStatusImporting RunStatus = "importing"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// ItemStatus is the checkpoint state of one item within a run.
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusImported ItemStatus = "imported"
	ItemStatusSkipped  ItemStatus = "skipped"
	ItemStatusFailed   ItemStatus = "failed"
)

// ItemError records why one item failed without aborting its siblings.
type ItemError struct {
	ExternalID string `json:"external_id"`
	Stage      string `json:"stage"` // "detail", "persist" or "resumed"
	Reason     string `json:"reason"`
}

// Outcome is the final accounting of a run. Every selected item lands in
// exactly one bucket: Imported + SkippedDuplicates + len(Errors) == Total().
type Outcome struct {
	RunID             string      `json:"run_id"`
	Imported          int         `json:"imported"`
	SkippedDuplicates int         `json:"skipped_duplicates"`
	Errors            []ItemError `json:"errors,omitempty"`
}

// Total returns the number of items the run processed.
func (o *Outcome) Total() int {
	return o.Imported + o.SkippedDuplicates + len(o.Errors)
}

// Run is the durable record of one import batch.
type Run struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Criteria  Criteria  `json:"criteria"`
	Status    RunStatus `json:"status"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunItem is one checkpointed item of a run.
type RunItem struct {
	RunID     string     `json:"run_id"`
	Index     int        `json:"index"`
	Candidate Candidate  `json:"candidate"`
	Status    ItemStatus `json:"status"`
	EntryID   string     `json:"entry_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
