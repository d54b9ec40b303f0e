// Package ticketmaster adapts the Ticketmaster Discovery API as an event
// source. Discovery queries take a geohash point plus radius, page through
// results with a page index, and cap deep paging at 1000 items per query,
// so the sweep uses a fine grid step to keep cells under the cap.
package ticketmaster

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// DefaultEndpoint is the Discovery v2 event search endpoint.
const DefaultEndpoint = "https://app.ticketmaster.com/discovery/v2/events.json"

const (
	defaultStep  = 0.25
	defaultDelay = 250 * time.Millisecond

	// pageSize is the Discovery maximum page size.
	pageSize = 200

	// maxDeepPage is the last page index reachable under the Discovery
	// deep-paging cap (size * page < 1000).
	maxDeepPage = 4

	// geohashPrecision of the query point. Nine characters is well under
	// a meter, so the cell center is represented exactly enough.
	geohashPrecision = 9
)

// Source fetches events (with embedded venues) from Discovery.
type Source struct {
	client   *transport.Client
	endpoint string
	apiKey   string
	step     float64
	delay    time.Duration
}

// Option configures the Source.
type Option func(*Source)

// WithEndpoint overrides the Discovery endpoint.
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

// New creates a Discovery source with the given API key.
func New(apiKey string, opts ...Option) *Source {
	s := &Source{
		client:   transport.New(string(venues.ProviderTicketmaster)),
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		step:     defaultStep,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider implements sources.Source.
func (s *Source) Provider() venues.ProviderID { return venues.ProviderTicketmaster }

// Step implements sources.Source.
func (s *Source) Step() float64 { return s.step }

// Delay implements sources.Source.
func (s *Source) Delay() time.Duration { return s.delay }

// Discovery response shapes, reduced to the fields the pipeline uses.

type response struct {
	Embedded struct {
		Events []event `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Size       int `json:"size"`
		TotalPages int `json:"totalPages"`
		Number     int `json:"number"`
	} `json:"page"`
}

type event struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Dates struct {
		Start struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
		Status struct {
			Code string `json:"code"`
		} `json:"status"`
	} `json:"dates"`
	Info     string `json:"info"`
	Embedded struct {
		Venues []venue `json:"venues"`
	} `json:"_embedded"`
}

type venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	Address struct {
		Line1 string `json:"line1"`
	} `json:"address"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	Country struct {
		CountryCode string `json:"countryCode"`
	} `json:"country"`
	PostalCode      string `json:"postalCode"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
	} `json:"classifications"`
}

// FetchPage implements sources.Source. The page token is the Discovery
// page index as a decimal string; an empty token means page zero.
func (s *Source) FetchPage(ctx context.Context, cell geo.Cell, pageToken string) (sources.Page, error) {
	pageNum := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return sources.Page{}, fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		pageNum = n
	}

	lat, lng := cell.Center()
	radiusKm := int(math.Ceil(cell.RadiusMeters() / 1000))
	if radiusKm < 1 {
		radiusKm = 1
	}

	q := url.Values{
		"apikey":   {s.apiKey},
		"geoPoint": {geo.Geohash(lat, lng, geohashPrecision)},
		"radius":   {strconv.Itoa(radiusKm)},
		"unit":     {"km"},
		"size":     {strconv.Itoa(pageSize)},
		"page":     {strconv.Itoa(pageNum)},
		"sort":     {"date,asc"},
	}

	var resp response
	if err := s.client.GetJSON(ctx, s.endpoint+"?"+q.Encode(), &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Seen: len(resp.Embedded.Events)}
	for _, ev := range resp.Embedded.Events {
		page.Events = append(page.Events, s.mapEvent(ev))
	}

	if next := pageNum + 1; next < resp.Page.TotalPages && next <= maxDeepPage {
		page.NextPage = strconv.Itoa(next)
	}
	return page, nil
}

// mapEvent maps one Discovery event, carrying its first embedded venue
// inline when present.
func (s *Source) mapEvent(ev event) sources.RawEvent {
	raw := sources.RawEvent{
		Provider:    venues.ProviderTicketmaster,
		ExternalID:  ev.ID,
		Title:       strings.TrimSpace(ev.Name),
		Status:      ev.Dates.Status.Code,
		Description: strings.TrimSpace(ev.Info),
		TicketURL:   ev.URL,
		StartsAt:    parseTime(ev.Dates.Start.DateTime),
		EndsAt:      parseTime(ev.Dates.End.DateTime),
	}
	for _, img := range ev.Images {
		if img.URL != "" {
			raw.Images = append(raw.Images, img.URL)
		}
	}
	if len(ev.Embedded.Venues) > 0 {
		if v, ok := s.mapVenue(ev.Embedded.Venues[0]); ok {
			raw.Venue = &v
		}
		raw.VenueExternalID = ev.Embedded.Venues[0].ID
	}
	return raw
}

// mapVenue maps an embedded Discovery venue. Venues missing coordinates
// or a name are dropped; the event keeps only the linkage hint then.
func (s *Source) mapVenue(v venue) (sources.RawVenue, bool) {
	lat, errLat := strconv.ParseFloat(v.Location.Latitude, 64)
	lng, errLng := strconv.ParseFloat(v.Location.Longitude, 64)
	name := strings.TrimSpace(v.Name)
	if name == "" || errLat != nil || errLng != nil || (lat == 0 && lng == 0) {
		return sources.RawVenue{}, false
	}

	raw := sources.RawVenue{
		Provider:   venues.ProviderTicketmaster,
		ExternalID: v.ID,
		Name:       name,
		Lat:        lat,
		Lng:        lng,
		Address:    strings.TrimSpace(v.Address.Line1),
		City:       strings.TrimSpace(v.City.Name),
		Country:    strings.TrimSpace(v.Country.CountryCode),
		PostalCode: strings.TrimSpace(v.PostalCode),
		URL:        v.URL,
	}
	for _, c := range v.Classifications {
		if seg := strings.TrimSpace(c.Segment.Name); seg != "" && !contains(raw.Categories, seg) {
			raw.Categories = append(raw.Categories, seg)
		}
	}
	return raw, true
}

// parseTime parses a Discovery ISO timestamp; zero time when absent.
func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
