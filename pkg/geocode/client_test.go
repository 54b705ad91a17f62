package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
	"status": "OK",
	"results": [
		{
			"formatted_address": "La Rochelle, France",
			"geometry": {"location": {"lat": 46.1591, "lng": -1.152}}
		}
	]
}`

func TestResolve(t *testing.T) {
	var gotAddress, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, okResponse)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.Resolve(context.Background(), "La Rochelle")
	require.NoError(t, err)

	assert.Equal(t, "La Rochelle", gotAddress)
	assert.Equal(t, "test-key", gotKey)
	assert.InDelta(t, 46.1591, res.Lat, 1e-9)
	assert.InDelta(t, -1.152, res.Lng, 1e-9)
	assert.Equal(t, "La Rochelle, France", res.FormattedAddress)
}

func TestResolve_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Resolve(context.Background(), "gibberish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZERO_RESULTS")
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("latlng"))
		fmt.Fprint(w, okResponse)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	addr, err := c.Reverse(context.Background(), 46.1591, -1.152)
	require.NoError(t, err)
	assert.Equal(t, "La Rochelle, France", addr)
}

func TestResolve_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Resolve(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
