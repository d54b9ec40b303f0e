// Package osm adapts the OpenStreetMap Overpass API as a venue source.
// Overpass takes a raw bounding box per query and returns every matching
// element in one response, so cells are single-page and the grid step can
// stay coarse.
package osm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

const (
	defaultStep  = 1.0
	defaultDelay = 2 * time.Second

	// queryTimeout is the server-side timeout passed in the QL header.
	queryTimeout = 25
)

// amenityFilter selects the venue-like amenity values we ingest.
const amenityFilter = "^(bar|pub|nightclub|theatre|arts_centre|community_centre|music_venue)$"

// Source fetches venue elements from Overpass.
type Source struct {
	client   *transport.Client
	endpoint string
	step     float64
	delay    time.Duration
}

// Option configures the Source.
type Option func(*Source)

// WithEndpoint overrides the Overpass interpreter URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Source) { s.endpoint = endpoint }
}

// WithStep overrides the sweep grid step in degrees.
func WithStep(step float64) Option {
	return func(s *Source) { s.step = step }
}

// WithDelay overrides the inter-request delay.
func WithDelay(d time.Duration) Option {
	return func(s *Source) { s.delay = d }
}

// New creates an Overpass source.
func New(opts ...Option) *Source {
	s := &Source{
		client:   transport.New(string(venues.ProviderOSM)),
		endpoint: DefaultEndpoint,
		step:     defaultStep,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider implements sources.Source.
func (s *Source) Provider() venues.ProviderID { return venues.ProviderOSM }

// Step implements sources.Source.
func (s *Source) Step() float64 { return s.step }

// Delay implements sources.Source.
func (s *Source) Delay() time.Duration { return s.delay }

// response is the Overpass JSON envelope.
type response struct {
	Elements []element `json:"elements"`
}

// element is one OSM node, way, or relation with its tags. Ways and
// relations carry their centroid in Center when "out center" is used.
type element struct {
	Type   string  `json:"type"`
	ID     int64   `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// FetchPage implements sources.Source. Overpass has no pagination; the
// page token is ignored and NextPage is always empty.
func (s *Source) FetchPage(ctx context.Context, cell geo.Cell, _ string) (sources.Page, error) {
	form := url.Values{"data": {s.query(cell)}}

	var resp response
	if err := s.client.PostForm(ctx, s.endpoint, form, &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Seen: len(resp.Elements)}
	for _, el := range resp.Elements {
		raw, ok := s.mapElement(el)
		if !ok {
			continue
		}
		page.Venues = append(page.Venues, raw)
	}
	return page, nil
}

// query builds the Overpass QL statement for one cell. The bbox order is
// Overpass convention: south, west, north, east.
func (s *Source) query(cell geo.Cell) string {
	bbox := fmt.Sprintf("%f,%f,%f,%f", cell.MinLat, cell.MinLng, cell.MaxLat, cell.MaxLng)
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  node["amenity"~"%s"]["name"](%s);
  way["amenity"~"%s"]["name"](%s);
);
out center;`, queryTimeout, amenityFilter, bbox, amenityFilter, bbox)
}

// mapElement maps one element into the common raw shape. Elements missing
// a name or coordinates are dropped, not errors.
func (s *Source) mapElement(el element) (sources.RawVenue, bool) {
	lat, lng := el.Lat, el.Lon
	if el.Center != nil {
		lat, lng = el.Center.Lat, el.Center.Lon
	}
	name := strings.TrimSpace(el.Tags["name"])
	if name == "" || (lat == 0 && lng == 0) {
		return sources.RawVenue{}, false
	}

	externalID := fmt.Sprintf("%s/%d", el.Type, el.ID)
	raw := sources.RawVenue{
		Provider:   venues.ProviderOSM,
		ExternalID: externalID,
		Name:       name,
		Lat:        lat,
		Lng:        lng,
		Address:    buildAddress(el.Tags),
		City:       el.Tags["addr:city"],
		Country:    el.Tags["addr:country"],
		PostalCode: el.Tags["addr:postcode"],
		Phone:      firstTag(el.Tags, "phone", "contact:phone"),
		Website:    firstTag(el.Tags, "website", "contact:website"),
		URL:        "https://www.openstreetmap.org/" + externalID,
	}
	if amenity := el.Tags["amenity"]; amenity != "" {
		raw.Categories = []string{amenity}
	}
	return raw, true
}

// buildAddress joins the addr:street and addr:housenumber tags.
func buildAddress(tags map[string]string) string {
	street := strings.TrimSpace(tags["addr:street"])
	if street == "" {
		return ""
	}
	if number := strings.TrimSpace(tags["addr:housenumber"]); number != "" {
		return street + " " + number
	}
	return street
}

// firstTag returns the first non-empty tag among keys.
func firstTag(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}
