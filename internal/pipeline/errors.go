// Package pipeline implements the discovery-and-import workflow: searching
// nearby places, flagging duplicates against the existing inventory, holding
// the operator's curation state, and running the durable import batch.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/stayguide/guide-cli/internal/model"
)

// ProviderError wraps a failure from an external provider (search, geocode,
// place details).
type ProviderError struct {
	Op       string
	Category model.CategoryTag
	PlaceID  string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Category != "":
		return fmt.Sprintf("provider %s (%s): %v", e.Op, e.Category, e.Err)
	case e.PlaceID != "":
		return fmt.Sprintf("provider %s (%s): %v", e.Op, e.PlaceID, e.Err)
	default:
		return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure during import.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError marks an operation rejected for being invalid in the
// current state, as opposed to an external failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
