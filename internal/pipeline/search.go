package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/stayguide/guide-cli/internal/model"
	"github.com/stayguide/guide-cli/pkg/places"
)

// includedTypes maps each category tag to the provider place types queried
// for it.
var includedTypes = map[model.CategoryTag][]string{
	model.CategoryRestaurants: {"restaurant"},
	model.CategoryActivities:  {"tourist_attraction", "amusement_park", "aquarium", "zoo"},
	model.CategoryNature:      {"park", "hiking_area", "national_park"},
	model.CategoryCulture:     {"museum", "art_gallery", "historical_landmark"},
	model.CategoryShopping:    {"shopping_mall", "market"},
	model.CategoryBars:        {"bar", "night_club"},
}

// CategoryError records a category whose search failed; the other
// categories' results are unaffected.
type CategoryError struct {
	Category model.CategoryTag `json:"category"`
	Reason   string            `json:"reason"`
}

// SearchResult is the merged outcome of one discovery search.
type SearchResult struct {
	Candidates []model.Candidate
	Failed     []CategoryError
}

// Coordinator runs the per-category nearby searches and merges the results.
type Coordinator struct {
	client      places.Client
	maxPerQuery int
}

// NewCoordinator creates a search coordinator.
func NewCoordinator(client places.Client, maxPerQuery int) *Coordinator {
	if maxPerQuery <= 0 {
		maxPerQuery = 20
	}
	return &Coordinator{client: client, maxPerQuery: maxPerQuery}
}

// Search queries the provider once per selected category and merges results
// by external id, first category wins. Each category failure is recorded and
// skipped; only when every category fails does Search return an error. The
// merged candidates are annotated with distance from the origin and sorted
// nearest first. Progress advances once per completed category.
func (c *Coordinator) Search(ctx context.Context, criteria model.Criteria, progress *Progress) (*SearchResult, error) {
	result := &SearchResult{}
	seen := make(map[string]bool)
	var lastErr error

	for _, tag := range criteria.Categories {
		summaries, err := c.searchCategory(ctx, criteria, tag)
		if err != nil {
			zap.L().Warn("category search failed",
				zap.String("category", string(tag)),
				zap.Error(err))
			result.Failed = append(result.Failed, CategoryError{
				Category: tag,
				Reason:   err.Error(),
			})
			lastErr = err
		} else {
			for _, s := range summaries {
				if seen[s.ExternalID] {
					continue
				}
				seen[s.ExternalID] = true
				cand := model.CandidateFrom(s, tag)
				cand.DistanceMeters = criteria.Origin.DistanceMeters(s.Coordinates)
				result.Candidates = append(result.Candidates, cand)
			}
		}
		if progress != nil {
			progress.Add(1)
		}
	}

	if len(criteria.Categories) > 0 && len(result.Failed) == len(criteria.Categories) {
		return nil, &ProviderError{Op: "search", Err: lastErr}
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].DistanceMeters < result.Candidates[j].DistanceMeters
	})
	return result, nil
}

func (c *Coordinator) searchCategory(ctx context.Context, criteria model.Criteria, tag model.CategoryTag) ([]model.PlaceSummary, error) {
	types, ok := includedTypes[tag]
	if !ok {
		types = []string{string(tag)}
	}

	found, err := c.client.Nearby(ctx, places.NearbyRequest{
		Lat:           criteria.Origin.Lat,
		Lng:           criteria.Origin.Lng,
		RadiusMeters:  float64(criteria.RadiusMeters),
		IncludedTypes: types,
		MaxResults:    c.maxPerQuery,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]model.PlaceSummary, 0, len(found))
	for _, p := range found {
		var photoRef string
		if len(p.Photos) > 0 {
			photoRef = p.Photos[0].Name
		}
		summaries = append(summaries, model.PlaceSummary{
			ExternalID: p.ID,
			Name:       p.DisplayName.Text,
			Address:    p.FormattedAddress,
			Coordinates: model.Coordinates{
				Lat: p.Location.Latitude,
				Lng: p.Location.Longitude,
			},
			Rating:      p.Rating,
			RatingCount: p.UserRatingCount,
			PhotoRef:    photoRef,
		})
	}
	return summaries, nil
}
