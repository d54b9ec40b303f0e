package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Hirsch","lat":49.4521}`))
	}))
	defer server.Close()

	client := transport.New("eventbrite", transport.WithBearer("sekrit"))

	var out struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL+"/v3/venues/1/", &out))
	assert.Equal(t, "Hirsch", out.Name)
	assert.Equal(t, 49.4521, out.Lat)
}

func TestGetJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"fault":"rate limit"}`))
	}))
	defer server.Close()

	client := transport.New("ticketmaster")
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ticketmaster", apiErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.True(t, errors.IsRateLimited(err))
	assert.True(t, errors.Retryable(err))
}

func TestGetJSONFatalStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := transport.New("eventbrite")
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.False(t, errors.Retryable(err))
}

func TestGetJSONMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements": [`))
	}))
	defer server.Close()

	client := transport.New("osm")
	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)

	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.False(t, errors.Retryable(err))
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "node[\"amenity\"]")
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer server.Close()

	client := transport.New("osm")
	var out struct {
		Elements []any `json:"elements"`
	}
	form := map[string][]string{"data": {`node["amenity"](49,11,50,12);out;`}}
	require.NoError(t, client.PostForm(context.Background(), server.URL, form, &out))
	assert.Empty(t, out.Elements)
}

func TestGetJSONTransportFailure(t *testing.T) {
	client := transport.New("osm", transport.WithTimeout(200*time.Millisecond))
	var out map[string]any
	err := client.GetJSON(context.Background(), "http://127.0.0.1:1/nowhere", &out)
	require.Error(t, err)
	// No status code means retryable transport failure.
	assert.True(t, errors.Retryable(err))
}
