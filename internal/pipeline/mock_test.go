package pipeline

import (
	"context"
	"strconv"
	"sync"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/internal/store"
	"github.com/stayguide/guide-cli/pkg/describe"
	"github.com/stayguide/guide-cli/pkg/geocode"
	"github.com/stayguide/guide-cli/pkg/places"
)

// mockPlaces implements places.Client for testing. Nearby responses and
// errors are keyed by the first included type of the request.
type mockPlaces struct {
	mu          sync.Mutex
	nearby      map[string][]places.Place
	nearbyErr   map[string]error
	details     map[string]*places.Place
	detailErr   map[string]error
	nearbyCalls int
	detailCalls []string
}

func (m *mockPlaces) Nearby(_ context.Context, req places.NearbyRequest) ([]places.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearbyCalls++
	var key string
	if len(req.IncludedTypes) > 0 {
		key = req.IncludedTypes[0]
	}
	if err, ok := m.nearbyErr[key]; ok {
		return nil, err
	}
	return m.nearby[key], nil
}

func (m *mockPlaces) Details(_ context.Context, placeID string) (*places.Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailCalls = append(m.detailCalls, placeID)
	if err, ok := m.detailErr[placeID]; ok {
		return nil, err
	}
	if p, ok := m.details[placeID]; ok {
		return p, nil
	}
	return &places.Place{ID: placeID}, nil
}

// mockGeocoder implements geocode.Client for testing.
type mockGeocoder struct {
	result *geocode.Result
	err    error
}

func (m *mockGeocoder) Resolve(_ context.Context, _ string) (*geocode.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockGeocoder) Reverse(_ context.Context, _, _ float64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.result.FormattedAddress, nil
}

// mockDescriber implements describe.Generator for testing.
type mockDescriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockDescriber) Generate(_ context.Context, _ describe.Input) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// mockInventory implements store.InventoryStore for testing.
type mockInventory struct {
	mu              sync.Mutex
	fingerprints    []model.Fingerprint
	fingerprintsErr error

	entries        []model.Entry
	entryIDs       map[string]string // entry name -> assigned id
	createEntryErr map[string]error  // entry name -> error
	nextEntryID    int

	media    map[string][]string // entry id -> urls in order
	mediaErr error

	categories        map[string]string // slug -> id
	findCategoryErr   error
	createCategoryErr error
	categoryCreates   int
}

func (m *mockInventory) ExistingFingerprints(_ context.Context, _ string) ([]model.Fingerprint, error) {
	if m.fingerprintsErr != nil {
		return nil, m.fingerprintsErr
	}
	return m.fingerprints, nil
}

func (m *mockInventory) CreateEntry(_ context.Context, entry model.Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.createEntryErr[entry.Name]; ok {
		return "", err
	}
	m.nextEntryID++
	id := "entry-" + strconv.Itoa(m.nextEntryID)
	m.entries = append(m.entries, entry)
	if m.entryIDs == nil {
		m.entryIDs = make(map[string]string)
	}
	m.entryIDs[entry.Name] = id
	return id, nil
}

func (m *mockInventory) CreateMedia(_ context.Context, entryID, url string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mediaErr != nil {
		return m.mediaErr
	}
	if m.media == nil {
		m.media = make(map[string][]string)
	}
	m.media[entryID] = append(m.media[entryID], url)
	return nil
}

func (m *mockInventory) FindCategoryBySlug(_ context.Context, _, slug string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findCategoryErr != nil {
		return "", m.findCategoryErr
	}
	return m.categories[slug], nil
}

func (m *mockInventory) CreateCategory(_ context.Context, _, _, _, slug string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createCategoryErr != nil {
		return "", m.createCategoryErr
	}
	m.categoryCreates++
	id := "cat-" + slug
	if m.categories == nil {
		m.categories = make(map[string]string)
	}
	m.categories[slug] = id
	return id, nil
}

// mockRuns implements store.RunStore for testing.
type mockRuns struct {
	mu           sync.Mutex
	createdRun   *model.Run
	createdItems []model.Candidate
	createErr    error
	marks        map[int]model.ItemStatus
	markReasons  map[int]string
	completed    *model.Outcome
	statusSets   []model.RunStatus
	runs         map[string]*model.Run
	items        map[string][]model.RunItem
}

func (m *mockRuns) CreateRun(_ context.Context, run model.Run, items []model.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.createdRun = &run
	m.createdItems = items
	return nil
}

func (m *mockRuns) UpdateRunStatus(_ context.Context, _ string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusSets = append(m.statusSets, status)
	return nil
}

func (m *mockRuns) CompleteRun(_ context.Context, _ string, outcome *model.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = outcome
	return nil
}

func (m *mockRuns) MarkItem(_ context.Context, _ string, index int, status model.ItemStatus, _, errReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks == nil {
		m.marks = make(map[int]model.ItemStatus)
		m.markReasons = make(map[int]string)
	}
	m.marks[index] = status
	m.markReasons[index] = errReason
	return nil
}

func (m *mockRuns) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[runID], nil
}

func (m *mockRuns) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	return nil, nil
}

func (m *mockRuns) ListItems(_ context.Context, runID string) ([]model.RunItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[runID], nil
}

var (
	_ places.Client        = (*mockPlaces)(nil)
	_ geocode.Client       = (*mockGeocoder)(nil)
	_ describe.Generator   = (*mockDescriber)(nil)
	_ store.InventoryStore = (*mockInventory)(nil)
	_ store.RunStore       = (*mockRuns)(nil)
)
