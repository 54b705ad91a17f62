// Package model holds the domain types shared across the pipeline, stores,
// and commands.
package model

import (
	"math"

	geom "github.com/twpayne/go-geom"
)

const earthRadiusMeters = 6371000

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinates are unset.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Point returns the coordinates as a go-geom point in SRID 4326
// (lng, lat order per PostGIS convention).
func (c Coordinates) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lng, c.Lat}).SetSRID(4326)
}

// DistanceMeters returns the great-circle distance to other using the
// haversine formula.
func (c Coordinates) DistanceMeters(other Coordinates) float64 {
	lat1 := c.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - c.Lat) * math.Pi / 180
	dLng := (other.Lng - c.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Criteria is the frozen input of a discovery run.
type Criteria struct {
	Origin       Coordinates   `json:"origin"`
	RadiusMeters int           `json:"radius_meters"`
	Categories   []CategoryTag `json:"categories"`
}

// PlaceSummary is the provider-neutral shape of one nearby-search result.
type PlaceSummary struct {
	ExternalID  string
	Name        string
	Address     string
	Coordinates Coordinates
	Rating      float64
	RatingCount int
	PhotoRef    string
}

// Review is one visitor review attached to a place's details.
type Review struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

// PlaceDetail carries the fields fetched per imported place.
type PlaceDetail struct {
	Phone        string
	Website      string
	OpeningHours []string
	PhotoRefs    []string
	RouteURL     string
	Reviews      []Review
}

// Candidate is a search result as it moves through preview and curation.
type Candidate struct {
	ExternalID       string      `json:"external_id"`
	Name             string      `json:"name"`
	Address          string      `json:"address"`
	Coordinates      Coordinates `json:"coordinates"`
	Rating           float64     `json:"rating,omitempty"`
	RatingCount      int         `json:"rating_count,omitempty"`
	PhotoRef         string      `json:"photo_ref,omitempty"`
	Category         CategoryTag `json:"category"`
	DistanceMeters   float64     `json:"distance_meters,omitempty"`
	IsDuplicate      bool        `json:"is_duplicate,omitempty"`
	Selected         bool        `json:"selected"`
	CategoryOverride CategoryTag `json:"category_override,omitempty"`
	PhotoRefs        []string    `json:"photo_refs,omitempty"`
	PhotoIndex       int         `json:"photo_index,omitempty"`
}

// CandidateFrom builds a candidate from a search result under the category
// that surfaced it.
func CandidateFrom(s PlaceSummary, category CategoryTag) Candidate {
	return Candidate{
		ExternalID:  s.ExternalID,
		Name:        s.Name,
		Address:     s.Address,
		Coordinates: s.Coordinates,
		Rating:      s.Rating,
		RatingCount: s.RatingCount,
		PhotoRef:    s.PhotoRef,
		Category:    category,
	}
}

// EffectiveCategory returns the operator's override when set, otherwise the
// category the search surfaced the place under.
func (c Candidate) EffectiveCategory() CategoryTag {
	if c.CategoryOverride != "" {
		return c.CategoryOverride
	}
	return c.Category
}

// ChosenPhoto returns the photo reference the operator picked, falling back
// to the primary search photo when the index is out of range.
func (c Candidate) ChosenPhoto() string {
	if c.PhotoIndex >= 0 && c.PhotoIndex < len(c.PhotoRefs) {
		return c.PhotoRefs[c.PhotoIndex]
	}
	return c.PhotoRef
}

// Fingerprint identifies an existing inventory entry for duplicate detection.
type Fingerprint struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Entry is a fully imported inventory record.
type Entry struct {
	OwnerID      string
	Name         string
	Address      string
	Coordinates  Coordinates
	Phone        string
	Website      string
	OpeningHours []string
	RouteURL     string
	Rating       float64
	RatingCount  int
	CategoryID   string
	Description  string
}
