// Package eventbrite adapts the Eventbrite API as an event source. Event
// search takes a point plus radius and pages with a page number; venue
// detail lives behind a separate endpoint, so events whose payload omits
// the expanded venue need a secondary per-venue fetch.
package eventbrite

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// DefaultEndpoint is the Eventbrite API base URL.
const DefaultEndpoint = "https://www.eventbriteapi.com/v3"

const (
	defaultStep  = 0.25
	defaultDelay = 350 * time.Millisecond
)

// Source fetches events (and their venues) from Eventbrite.
type Source struct {
	client   *transport.Client
	endpoint string
	step     float64
	delay    time.Duration
}

// Option configures the Source.
type Option func(*Source)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Source) { s.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithStep overrides the sweep grid step in degrees.
func WithStep(step float64) Option {
	return func(s *Source) { s.step = step }
}

// WithDelay overrides the inter-request delay.
func WithDelay(d time.Duration) Option {
	return func(s *Source) { s.delay = d }
}

// New creates an Eventbrite source authenticated with the given OAuth token.
func New(token string, opts ...Option) *Source {
	s := &Source{
		client:   transport.New(string(venues.ProviderEventbrite), transport.WithBearer(token)),
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
func (s *Source) Provider() venues.ProviderID { return venues.ProviderEventbrite }

// Step implements sources.Source.
func (s *Source) Step() float64 { return s.step }

// Delay implements sources.Source.
func (s *Source) Delay() time.Duration { return s.delay }

type searchResponse struct {
	Events     []event `json:"events"`
	Pagination struct {
		PageNumber   int  `json:"page_number"`
		PageCount    int  `json:"page_count"`
		HasMoreItems bool `json:"has_more_items"`
	} `json:"pagination"`
}

type event struct {
	ID   string `json:"id"`
	Name struct {
		Text string `json:"text"`
	} `json:"name"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
	URL   string `json:"url"`
	Start struct {
		UTC string `json:"utc"`
	} `json:"start"`
	End struct {
		UTC string `json:"utc"`
	} `json:"end"`
	Status  string `json:"status"`
	VenueID string `json:"venue_id"`
	Venue   *venue `json:"venue"`
	Logo    *struct {
		URL string `json:"url"`
	} `json:"logo"`
}

type venue struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Address   struct {
		Address1   string `json:"address_1"`
		City       string `json:"city"`
		Country    string `json:"country"`
		PostalCode string `json:"postal_code"`
	} `json:"address"`
}

// FetchPage implements sources.Source. The page token is the Eventbrite
// page number as a decimal string; an empty token means page one.
func (s *Source) FetchPage(ctx context.Context, cell geo.Cell, pageToken string) (sources.Page, error) {
	pageNum := 1
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return sources.Page{}, fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		pageNum = n
	}

	lat, lng := cell.Center()
	radiusKm := cell.RadiusMeters() / 1000
	if radiusKm < 1 {
		radiusKm = 1
	}

	q := url.Values{
		"location.latitude":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"location.longitude": {strconv.FormatFloat(lng, 'f', 6, 64)},
		"location.within":    {fmt.Sprintf("%.0fkm", radiusKm)},
		"expand":             {"venue"},
		"page":               {strconv.Itoa(pageNum)},
	}

	var resp searchResponse
	if err := s.client.GetJSON(ctx, s.endpoint+"/events/search/?"+q.Encode(), &resp); err != nil {
		return sources.Page{}, err
	}

	page := sources.Page{Seen: len(resp.Events)}
	for _, ev := range resp.Events {
		page.Events = append(page.Events, mapEvent(ev))
	}

	if resp.Pagination.HasMoreItems {
		page.NextPage = strconv.Itoa(pageNum + 1)
	}
	return page, nil
}

// ResolveVenue implements sources.VenueResolver with a venue detail fetch.
func (s *Source) ResolveVenue(ctx context.Context, externalID string) (sources.RawVenue, error) {
	var v venue
	if err := s.client.GetJSON(ctx, s.endpoint+"/venues/"+url.PathEscape(externalID)+"/", &v); err != nil {
		return sources.RawVenue{}, err
	}
	raw, ok := mapVenue(v)
	if !ok {
		return sources.RawVenue{}, fmt.Errorf("venue %s: missing name or coordinates", externalID)
	}
	return raw, nil
}

func mapEvent(ev event) sources.RawEvent {
	raw := sources.RawEvent{
		Provider:        venues.ProviderEventbrite,
		ExternalID:      ev.ID,
		Title:           strings.TrimSpace(ev.Name.Text),
		Description:     strings.TrimSpace(ev.Description.Text),
		Status:          ev.Status,
		TicketURL:       ev.URL,
		StartsAt:        parseTime(ev.Start.UTC),
		EndsAt:          parseTime(ev.End.UTC),
		VenueExternalID: ev.VenueID,
	}
	if ev.Logo != nil && ev.Logo.URL != "" {
		raw.Images = append(raw.Images, ev.Logo.URL)
	}
	if ev.Venue != nil {
		if v, ok := mapVenue(*ev.Venue); ok {
			raw.Venue = &v
		}
		if raw.VenueExternalID == "" {
			raw.VenueExternalID = ev.Venue.ID
		}
	}
	return raw
}

// mapVenue maps an Eventbrite venue. Venues missing coordinates or a
// name are unusable and dropped.
func mapVenue(v venue) (sources.RawVenue, bool) {
	lat, errLat := strconv.ParseFloat(v.Latitude, 64)
	lng, errLng := strconv.ParseFloat(v.Longitude, 64)
	name := strings.TrimSpace(v.Name)
	if name == "" || errLat != nil || errLng != nil || (lat == 0 && lng == 0) {
		return sources.RawVenue{}, false
	}

	return sources.RawVenue{
		Provider:   venues.ProviderEventbrite,
		ExternalID: v.ID,
		Name:       name,
		Lat:        lat,
		Lng:        lng,
		Address:    strings.TrimSpace(v.Address.Address1),
		City:       strings.TrimSpace(v.Address.City),
		Country:    strings.TrimSpace(v.Address.Country),
		PostalCode: strings.TrimSpace(v.Address.PostalCode),
	}, true
}

// parseTime parses an Eventbrite UTC timestamp; zero time when absent.
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
