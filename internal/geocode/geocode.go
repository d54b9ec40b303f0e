// Package geocode reverse-geocodes coordinates through a Nominatim-style
// endpoint. The pipeline uses it to backfill address fields on venues a
// provider delivered with coordinates only; it never overrides anything
// a provider said.
package geocode

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/transport"
)

// DefaultEndpoint is the public Nominatim instance.
const DefaultEndpoint = "https://nominatim.openstreetmap.org"

// Client is a reverse-geocoding client.
type Client struct {
	client   *transport.Client
	endpoint string
}

// Option configures the Client.
type Option func(*Client)

// WithEndpoint overrides the Nominatim base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// New creates a reverse-geocoding client. Nominatim's usage policy asks
// for a long timeout tolerance and an identifying user agent, both of
// which the shared transport already provides.
func New(opts ...Option) *Client {
	c := &Client{
		client:   transport.New("nominatim", transport.WithTimeout(20*time.Second)),
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Place is a reverse-geocoding result.
type Place struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Address holds the Nominatim address fields the pipeline consumes.
type Address struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Postcode    string `json:"postcode"`
	CountryCode string `json:"country_code"`
}

// Locality returns the most specific populated-place name present.
func (a Address) Locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

// Reverse looks up the address at the given point.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	q := url.Values{
		"format": {"jsonv2"},
		"lat":    {strconv.FormatFloat(lat, 'f', 7, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', 7, 64)},
	}
	var place Place
	if err := c.client.GetJSON(ctx, c.endpoint+"/reverse?"+q.Encode(), &place); err != nil {
		return Place{}, err
	}
	return place, nil
}

// ReverseAddress adapts Reverse to the ingest enrichment contract:
// locality, upper-cased country code, and postcode for the point.
func (c *Client) ReverseAddress(ctx context.Context, lat, lng float64) (city, country, postal string, err error) {
	place, err := c.Reverse(ctx, lat, lng)
	if err != nil {
		return "", "", "", err
	}
	country = place.Address.CountryCode
	if len(country) == 2 {
		country = string(country[0]&^0x20) + string(country[1]&^0x20)
	}
	return place.Address.Locality(), country, place.Address.Postcode, nil
}
