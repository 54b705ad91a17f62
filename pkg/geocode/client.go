// Package geocode resolves free-text addresses to coordinates and back using
// a Google-geocoding-style API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Result is a resolved coordinate pair with the provider's canonical address.
type Result struct {
	Lat              float64
	Lng              float64
	FormattedAddress string
}

// Client performs geocoding operations.
type Client interface {
	Resolve(ctx context.Context, address string) (*Result, error)
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a geocoding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
	Status  string          `json:"status"`
}

type geocodeResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

func (c *httpClient) Resolve(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}

	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, eris.Errorf("geocode: no match for %q (status %s)", address, resp.Status)
	}

	r := resp.Results[0]
	return &Result{
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
	}, nil
}

func (c *httpClient) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{
		"latlng": {fmt.Sprintf("%f,%f", lat, lng)},
		"key":    {c.apiKey},
	}

	resp, err := c.query(ctx, params)
	if err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return "", eris.Errorf("geocode: no address at %f,%f (status %s)", lat, lng, resp.Status)
	}

	return resp.Results[0].FormattedAddress, nil
}

func (c *httpClient) query(ctx context.Context, params url.Values) (*geocodeResponse, error) {
	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read response")
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	return &parsed, nil
}
