package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/pkg/geocode"
	"github.com/stayguide/guide-cli/pkg/places"
)

func newTestMachine(client *mockPlaces, inv *mockInventory, runs *mockRuns) *Machine {
	cfg := ExecutorConfig{
		Client:      client,
		Resolver:    NewCategoryResolver(inv, model.DefaultCatalog(), "owner-1"),
		Inventory:   inv,
		OwnerID:     "owner-1",
		Concurrency: 1,
	}
	if runs != nil {
		cfg.Runs = runs
	}
	return NewMachine(MachineConfig{
		Coordinator: NewCoordinator(client, 20),
		Executor:    NewExecutor(cfg),
		Geocoder:  &mockGeocoder{},
		Inventory: inv,
		Catalog:   model.DefaultCatalog(),
		OwnerID:   "owner-1",
	})
}

func searchReadyMachine(t *testing.T, client *mockPlaces, inv *mockInventory, runs *mockRuns) *Machine {
	t.Helper()
	m := newTestMachine(client, inv, runs)
	require.NoError(t, m.SetCriteria(testCriteria(model.CategoryRestaurants)))
	return m
}

func TestMachine_HappyPath(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{
			"restaurant": {nearbyPlace("p1", "Café du Port", 46.16, -1.15)},
		},
		details: map[string]*places.Place{"p1": detailPlace("p1")},
	}
	inv := &mockInventory{}
	runs := &mockRuns{}
	m := searchReadyMachine(t, client, inv, runs)
	ctx := context.Background()

	require.NoError(t, m.Search(ctx))
	assert.Equal(t, StatePreview, m.State())
	require.NotNil(t, m.Curation())
	assert.Len(t, m.Curation().Candidates(), 1)

	require.NoError(t, m.Confirm())
	assert.Equal(t, StateConfirm, m.State())

	outcome, err := m.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, m.State())
	assert.Equal(t, 1, outcome.Imported)
	assert.NotEmpty(t, m.RunID())
	assert.Equal(t, m.RunID(), outcome.RunID)
	assert.Equal(t, 1.0, m.Progress().Fraction())
}

func TestMachine_SetCriteriaValidation(t *testing.T) {
	m := newTestMachine(&mockPlaces{}, &mockInventory{}, nil)

	err := m.SetCriteria(model.Criteria{RadiusMeters: 2000, Categories: []model.CategoryTag{model.CategoryBars}})
	assert.True(t, IsValidationError(err), "missing origin")

	err = m.SetCriteria(model.Criteria{Origin: testOrigin, Categories: []model.CategoryTag{model.CategoryBars}})
	assert.True(t, IsValidationError(err), "missing radius")

	err = m.SetCriteria(model.Criteria{Origin: testOrigin, RadiusMeters: 2000})
	assert.True(t, IsValidationError(err), "missing categories")

	err = m.SetCriteria(model.Criteria{Origin: testOrigin, RadiusMeters: 2000, Categories: []model.CategoryTag{"bowling"}})
	assert.True(t, IsValidationError(err), "unknown category")
}

func TestMachine_GuardsOutOfOrderTransitions(t *testing.T) {
	m := newTestMachine(&mockPlaces{}, &mockInventory{}, nil)
	ctx := context.Background()

	assert.True(t, IsValidationError(m.Confirm()), "confirm before search")
	_, err := m.Import(ctx)
	assert.True(t, IsValidationError(err), "import before confirm")
	assert.True(t, IsValidationError(m.BackToPreview()))
	assert.True(t, IsValidationError(m.BackToInput()))
}

func TestMachine_SearchTotalFailureReturnsToInput(t *testing.T) {
	client := &mockPlaces{
		nearbyErr: map[string]error{"restaurant": errors.New("quota exceeded")},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)

	err := m.Search(context.Background())
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, StateInput, m.State())
	assert.Nil(t, m.Curation())
}

func TestMachine_PartialSearchFailureStaysInPreview(t *testing.T) {
	client := &mockPlaces{
		nearby:    map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
		nearbyErr: map[string]error{"bar": errors.New("quota exceeded")},
	}
	m := newTestMachine(client, &mockInventory{}, nil)
	require.NoError(t, m.SetCriteria(testCriteria(model.CategoryRestaurants, model.CategoryBars)))

	require.NoError(t, m.Search(context.Background()))
	assert.Equal(t, StatePreview, m.State())
	require.Len(t, m.FailedCategories(), 1)
	assert.Equal(t, model.CategoryBars, m.FailedCategories()[0].Category)
}

func TestMachine_SearchFlagsDuplicates(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{
			"restaurant": {
				nearbyPlace("p1", "Café du Port", 46.16, -1.15),
				nearbyPlace("p2", "La Voile Rouge", 46.17, -1.16),
			},
		},
	}
	inv := &mockInventory{fingerprints: []model.Fingerprint{{Name: "Cafe du Port", Address: "elsewhere"}}}
	m := searchReadyMachine(t, client, inv, nil)

	require.NoError(t, m.Search(context.Background()))

	cands := m.Curation().Candidates()
	byID := make(map[string]model.Candidate)
	for _, c := range cands {
		byID[c.ExternalID] = c
	}
	assert.True(t, byID["p1"].IsDuplicate)
	assert.False(t, byID["p1"].Selected)
	assert.True(t, byID["p2"].Selected)
}

func TestMachine_ConfirmRequiresSelection(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)
	require.NoError(t, m.Search(context.Background()))

	m.Curation().DeselectAll()
	assert.True(t, IsValidationError(m.Confirm()))

	m.Curation().SelectAll()
	assert.NoError(t, m.Confirm())
}

func TestMachine_BackEdges(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)
	require.NoError(t, m.Search(context.Background()))
	require.NoError(t, m.Confirm())

	require.NoError(t, m.BackToPreview())
	assert.Equal(t, StatePreview, m.State())
	assert.NotNil(t, m.Curation(), "curation survives the back edge")

	require.NoError(t, m.BackToInput())
	assert.Equal(t, StateInput, m.State())
	assert.Nil(t, m.Curation(), "leaving preview discards results")
}

func TestMachine_ImportStartFailureReturnsToPreview(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
	}
	runs := &mockRuns{createErr: errors.New("db down")}
	m := searchReadyMachine(t, client, &mockInventory{}, runs)
	ctx := context.Background()

	require.NoError(t, m.Search(ctx))
	require.NoError(t, m.Confirm())

	outcome, err := m.Import(ctx)
	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.Equal(t, StatePreview, m.State(), "a run that cannot start falls back to preview")
}

func TestMachine_CancelBeforeImport(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)
	require.NoError(t, m.Search(context.Background()))

	require.NoError(t, m.Cancel())
	assert.Equal(t, StateInput, m.State())
}

func TestMachine_CancelFromConfirmRejected(t *testing.T) {
	client := &mockPlaces{
		nearby: map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)
	require.NoError(t, m.Search(context.Background()))
	require.NoError(t, m.Confirm())

	err := m.Cancel()
	assert.True(t, IsValidationError(err), "confirm steps back to preview before cancelling")

	require.NoError(t, m.BackToPreview())
	require.NoError(t, m.Cancel())
	assert.Equal(t, StateInput, m.State())
}

func TestMachine_CancelDuringImportRejected(t *testing.T) {
	client := &mockPlaces{
		nearby:  map[string][]places.Place{"restaurant": {nearbyPlace("p1", "A", 46.16, -1.15)}},
		details: map[string]*places.Place{"p1": detailPlace("p1")},
	}
	m := searchReadyMachine(t, client, &mockInventory{}, nil)
	ctx := context.Background()
	require.NoError(t, m.Search(ctx))
	require.NoError(t, m.Confirm())
	_, err := m.Import(ctx)
	require.NoError(t, err)

	err = m.Cancel()
	assert.True(t, IsValidationError(err), "no cancellation once importing has started")
}

func TestMachine_ResolveOrigin(t *testing.T) {
	m := NewMachine(MachineConfig{
		Geocoder: &mockGeocoder{result: &geocode.Result{
			Lat:              46.1591,
			Lng:              -1.1520,
			FormattedAddress: "La Rochelle, France",
		}},
	})

	coords, err := m.ResolveOrigin(context.Background(), "La Rochelle")
	require.NoError(t, err)
	assert.InDelta(t, 46.1591, coords.Lat, 1e-9)
	assert.InDelta(t, -1.1520, coords.Lng, 1e-9)
}

func TestMachine_ResolveOriginProviderError(t *testing.T) {
	m := NewMachine(MachineConfig{
		Geocoder: &mockGeocoder{err: errors.New("zero results")},
	})

	_, err := m.ResolveOrigin(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}
