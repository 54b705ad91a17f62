package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/store"
	"github.com/stayguide/guide-cli/pkg/geocode"
)

// State is one step of the discovery workflow.
type State string

const (
	StateInput     State = "input"
	StateSearching State = "searching"
	StatePreview   State = "preview"
	StateConfirm   State = "confirm"
	StateImporting State = "importing"
	StateSuccess   State = "success"
)

// MachineConfig wires a Machine's collaborators.
type MachineConfig struct {
	Coordinator *Coordinator
	Executor    *Executor
	Geocoder    geocode.Client
	Inventory   store.InventoryStore
	Catalog     model.Catalog
	OwnerID     string
}

// Machine drives the workflow through its states: criteria entry, search,
// preview curation, confirmation, and import. Transitions out of order are
// rejected with a ValidationError; a search that fails entirely returns to
// input, and an import that cannot start returns to preview.
type Machine struct {
	cfg MachineConfig

	mu           sync.Mutex
	state        State
	criteria     model.Criteria
	curation     *Curation
	failed       []CategoryError
	runID        string
	progress     *Progress
	outcome      *model.Outcome
	cancelSearch context.CancelFunc
}

// NewMachine creates a workflow machine in the input state.
func NewMachine(cfg MachineConfig) *Machine {
	return &Machine{cfg: cfg, state: StateInput}
}

// State returns the current workflow state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RunID returns the id of the current or last import run, or "".
func (m *Machine) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Progress returns the tracker for the active stage, or nil.
func (m *Machine) Progress() *Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Outcome returns the final accounting after a successful import, or nil.
func (m *Machine) Outcome() *model.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// FailedCategories lists categories whose search failed in the last search.
func (m *Machine) FailedCategories() []CategoryError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// Curation exposes the preview selection state, or nil before a search.
func (m *Machine) Curation() *Curation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curation
}

// SetCriteria records the search input. Only valid in the input state.
func (m *Machine) SetCriteria(criteria model.Criteria) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInput {
		return &ValidationError{Reason: "criteria can only change before searching"}
	}
	if criteria.Origin.IsZero() {
		return &ValidationError{Reason: "origin coordinates are required"}
	}
	if criteria.RadiusMeters <= 0 {
		return &ValidationError{Reason: "radius must be positive"}
	}
	if len(criteria.Categories) == 0 {
		return &ValidationError{Reason: "at least one category is required"}
	}
	for _, tag := range criteria.Categories {
		if !m.cfg.Catalog.Contains(tag) {
			return &ValidationError{Reason: "unknown category: " + string(tag)}
		}
	}
	m.criteria = criteria
	return nil
}

// ResolveOrigin geocodes an address into origin coordinates.
func (m *Machine) ResolveOrigin(ctx context.Context, address string) (model.Coordinates, error) {
	res, err := m.cfg.Geocoder.Resolve(ctx, address)
	if err != nil {
		return model.Coordinates{}, &ProviderError{Op: "geocode", Err: err}
	}
	return model.Coordinates{Lat: res.Lat, Lng: res.Lng}, nil
}

// Search runs the discovery search and moves to preview. When every category
// fails, the machine returns to input with the provider error.
func (m *Machine) Search(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInput {
		m.mu.Unlock()
		return &ValidationError{Reason: "search requires the input state"}
	}
	criteria := m.criteria
	ctx, cancel := context.WithCancel(ctx)
	m.cancelSearch = cancel
	m.state = StateSearching
	// One extra unit covers the fingerprint load.
	m.progress = NewProgress(len(criteria.Categories)+1, 0)
	progress := m.progress
	m.mu.Unlock()
	defer cancel()

	existing, err := m.cfg.Inventory.ExistingFingerprints(ctx, m.cfg.OwnerID)
	if err != nil {
		m.toInput()
		return &PersistenceError{Op: "load fingerprints", Err: err}
	}
	progress.Add(1)

	result, err := m.cfg.Coordinator.Search(ctx, criteria, progress)
	if err != nil {
		m.toInput()
		return err
	}

	annotated := AnnotateDuplicates(result.Candidates, existing)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSearching {
		// Cancelled while searching; discard results.
		return &ValidationError{Reason: "search was cancelled"}
	}
	m.curation = NewCuration(annotated)
	m.failed = result.Failed
	m.cancelSearch = nil
	m.state = StatePreview
	return nil
}

// Confirm moves from preview to confirmation. At least one candidate must be
// selected.
func (m *Machine) Confirm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePreview {
		return &ValidationError{Reason: "confirm requires the preview state"}
	}
	if len(m.curation.SelectedNonDuplicates()) == 0 {
		return &ValidationError{Reason: "nothing selected to import"}
	}
	m.state = StateConfirm
	return nil
}

// BackToPreview returns from confirmation to preview, keeping curation state.
func (m *Machine) BackToPreview() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConfirm {
		return &ValidationError{Reason: "not in the confirmation state"}
	}
	m.state = StatePreview
	return nil
}

// BackToInput discards search results and returns to criteria entry.
func (m *Machine) BackToInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePreview {
		return &ValidationError{Reason: "not in the preview state"}
	}
	m.reset()
	return nil
}

// Import freezes the current selection and runs the import batch. On
// success the machine lands in the success state with the outcome recorded;
// if the run cannot start at all, the machine returns to preview.
func (m *Machine) Import(ctx context.Context) (*model.Outcome, error) {
	m.mu.Lock()
	if m.state != StateConfirm {
		m.mu.Unlock()
		return nil, &ValidationError{Reason: "import requires the confirmation state"}
	}
	items := m.curation.SelectedNonDuplicates()
	criteria := m.criteria
	m.runID = uuid.New().String()
	m.progress = NewProgress(len(items), 0)
	m.state = StateImporting
	run := model.Run{
		ID:        m.runID,
		OwnerID:   m.cfg.OwnerID,
		Criteria:  criteria,
		Status:    model.RunStatusImporting,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	progress := m.progress
	m.mu.Unlock()

	outcome, err := m.cfg.Executor.Run(ctx, run, items, progress)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StatePreview
		return nil, err
	}
	m.outcome = outcome
	m.state = StateSuccess
	return outcome, nil
}

// Cancel aborts the workflow. Allowed in input, searching and preview: a
// search in flight is interrupted, preview state is discarded. From confirm
// the caller steps back to preview first; once importing has begun the batch
// runs to completion.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateInput, StatePreview:
		m.reset()
		return nil
	case StateSearching:
		if m.cancelSearch != nil {
			m.cancelSearch()
			m.cancelSearch = nil
		}
		m.reset()
		return nil
	default:
		return &ValidationError{Reason: "cannot cancel from this state"}
	}
}

func (m *Machine) toInput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// reset returns to the input state. Caller holds the lock.
func (m *Machine) reset() {
	m.state = StateInput
	m.curation = nil
	m.failed = nil
	m.progress = nil
	m.outcome = nil
}
