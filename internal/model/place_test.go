package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinates_DistanceMeters(t *testing.T) {
	laRochelle := Coordinates{Lat: 46.1591, Lng: -1.1520}
	ileDeRe := Coordinates{Lat: 46.1942, Lng: -1.3680}

	d := laRochelle.DistanceMeters(ileDeRe)
	// About 17 km between the two.
	assert.InDelta(t, 17000, d, 1500)

	assert.Zero(t, laRochelle.DistanceMeters(laRochelle))
}

func TestCoordinates_DistanceSymmetric(t *testing.T) {
	a := Coordinates{Lat: 48.8566, Lng: 2.3522}
	b := Coordinates{Lat: 45.7640, Lng: 4.8357}
	assert.InDelta(t, a.DistanceMeters(b), b.DistanceMeters(a), 1e-6)
}

func TestCoordinates_Point(t *testing.T) {
	c := Coordinates{Lat: 46.1591, Lng: -1.1520}
	p := c.Point()
	require.NotNil(t, p)
	assert.Equal(t, 4326, p.SRID())
	assert.Equal(t, -1.1520, p.X(), "X is longitude")
	assert.Equal(t, 46.1591, p.Y(), "Y is latitude")
}

func TestCandidate_EffectiveCategory(t *testing.T) {
	c := Candidate{Category: CategoryRestaurants}
	assert.Equal(t, CategoryRestaurants, c.EffectiveCategory())

	c.CategoryOverride = CategoryBars
	assert.Equal(t, CategoryBars, c.EffectiveCategory())
}

func TestCandidate_ChosenPhoto(t *testing.T) {
	c := Candidate{
		PhotoRef:  "primary",
		PhotoRefs: []string{"a", "b", "c"},
	}

	c.PhotoIndex = 1
	assert.Equal(t, "b", c.ChosenPhoto())

	c.PhotoIndex = 99
	assert.Equal(t, "primary", c.ChosenPhoto(), "out of range falls back to primary")

	c.PhotoRefs = nil
	c.PhotoIndex = 0
	assert.Equal(t, "primary", c.ChosenPhoto())
}

func TestCandidateFrom(t *testing.T) {
	s := PlaceSummary{
		ExternalID:  "p1",
		Name:        "Café du Port",
		Address:     "12 Quai des Pêcheurs",
		Coordinates: Coordinates{Lat: 46.16, Lng: -1.15},
		Rating:      4.5,
		RatingCount: 230,
		PhotoRef:    "photos/p1",
	}

	c := CandidateFrom(s, CategoryRestaurants)
	assert.Equal(t, "p1", c.ExternalID)
	assert.Equal(t, CategoryRestaurants, c.Category)
	assert.Equal(t, 4.5, c.Rating)
	assert.False(t, c.Selected, "selection happens after duplicate annotation")
}

func TestOutcome_Total(t *testing.T) {
	o := Outcome{
		Imported:          3,
		SkippedDuplicates: 1,
		Errors:            []ItemError{{ExternalID: "p9"}},
	}
	assert.Equal(t, 5, o.Total())
}
