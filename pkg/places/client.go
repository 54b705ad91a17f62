// Package places provides a client for a Places-v1-style nearby search and
// place details API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const (
	nearbyFieldMask = "places.id,places.displayName,places.formattedAddress,places.location,places.rating,places.userRatingCount,places.photos"
	detailFieldMask = "id,displayName,formattedAddress,location,rating,userRatingCount,nationalPhoneNumber,websiteUri,regularOpeningHours,photos,googleMapsUri,reviews"
)

// NearbyRequest describes one nearby search call.
type NearbyRequest struct {
	Lat           float64
	Lng           float64
	RadiusMeters  float64
	IncludedTypes []string
	MaxResults    int
}

// Place is a place as returned by the API, for both search and detail calls.
type Place struct {
	ID               string       `json:"id"`
	DisplayName      DisplayName  `json:"displayName"`
	FormattedAddress string       `json:"formattedAddress"`
	Location         LatLng       `json:"location"`
	Rating           float64      `json:"rating"`
	UserRatingCount  int          `json:"userRatingCount"`
	Phone            string       `json:"nationalPhoneNumber"`
	WebsiteURI       string       `json:"websiteUri"`
	OpeningHours     *OpenHours   `json:"regularOpeningHours"`
	Photos           []Photo      `json:"photos"`
	GoogleMapsURI    string       `json:"googleMapsUri"`
	Reviews          []ReviewBody `json:"reviews"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpenHours carries the weekday descriptions of a place's opening hours.
type OpenHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

// Photo is a photo reference attached to a place.
type Photo struct {
	Name string `json:"name"`
}

// ReviewBody is one review snippet.
type ReviewBody struct {
	Rating              float64     `json:"rating"`
	Text                LabeledText `json:"text"`
	AuthorAttribution   Author      `json:"authorAttribution"`
	RelativePublishTime string      `json:"relativePublishTimeDescription"`
}

// LabeledText wraps a localized text field.
type LabeledText struct {
	Text string `json:"text"`
}

// Author identifies a review author.
type Author struct {
	DisplayName string `json:"displayName"`
}

// NearbyResponse is the response from a nearby search.
type NearbyResponse struct {
	Places []Place `json:"places"`
}

// Client performs place-search provider operations.
type Client interface {
	Nearby(ctx context.Context, req NearbyRequest) ([]Place, error)
	Details(ctx context.Context, placeID string) (*Place, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a place-search provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type nearbySearchRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

func (c *httpClient) Nearby(ctx context.Context, req NearbyRequest) ([]Place, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	body, err := json.Marshal(nearbySearchRequest{
		IncludedTypes:  req.IncludedTypes,
		MaxResultCount: maxResults,
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: LatLng{Latitude: req.Lat, Longitude: req.Lng},
				Radius: req.RadiusMeters,
			},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/places:searchNearby", nearbyFieldMask, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result NearbyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return result.Places, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Place, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/places/"+placeID, detailFieldMask, nil)
	if err != nil {
		return nil, err
	}

	var place Place
	if err := json.Unmarshal(respBody, &place); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal place")
	}

	return &place, nil
}

func (c *httpClient) do(ctx context.Context, method, url, fieldMask string, body io.Reader) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// RouteURL returns a directions link for a place when the API did not provide
// one.
func RouteURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%f,%f", lat, lng)
}
