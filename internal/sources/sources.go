// Package sources defines the raw record shapes produced by provider
// adapters and the Source contract every adapter satisfies. Raw records
// are ephemeral: they exist only within one ingestion pass and are never
// persisted.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// RawVenue is one provider sighting of a venue, mapped from the
// provider-specific payload into the common shape.
type RawVenue struct {
	Provider   venues.ProviderID
	ExternalID string
	Name       string
	Lat        float64
	Lng        float64
	Address    string
	City       string
	Country    string
	PostalCode string
	Phone      string
	Website    string
	URL        string
	Categories []string
}

// Usable reports whether the sighting carries enough to be matched:
// a name and coordinates. Unusable records are dropped by the adapters
// before they reach the matcher; they still count as seen upstream.
func (r RawVenue) Usable() bool {
	return strings.TrimSpace(r.Name) != "" && (r.Lat != 0 || r.Lng != 0)
}

// SourceRef returns the attribution entry this sighting contributes.
func (r RawVenue) SourceRef(now time.Time) venues.SourceRef {
	return venues.SourceRef{
		Provider:   r.Provider,
		ExternalID: r.ExternalID,
		URL:        r.URL,
		SyncedAt:   now,
	}
}

// RawEvent is one provider sighting of an event. An event references its
// venue either inline (Venue) or by a provider-local venue id
// (VenueExternalID) requiring a secondary fetch.
type RawEvent struct {
	Provider        venues.ProviderID
	ExternalID      string
	Title           string
	StartsAt        time.Time
	EndsAt          time.Time
	Status          string
	Description     string
	TicketURL       string
	Images          []string
	Venue           *RawVenue
	VenueExternalID string
}

// SourceRef returns the attribution entry this sighting contributes.
func (r RawEvent) SourceRef(now time.Time) venues.SourceRef {
	return venues.SourceRef{
		Provider:   r.Provider,
		ExternalID: r.ExternalID,
		URL:        r.TicketURL,
		SyncedAt:   now,
	}
}

// Page is one page of raw records for a grid cell. NextPage carries the
// provider-specific continuation token; empty means the cell is done.
// Seen counts every record the provider returned, including records the
// adapter dropped for missing name or coordinates.
type Page struct {
	Venues   []RawVenue
	Events   []RawEvent
	NextPage string
	Seen     int
}

// Source adapts one provider's API to the common fetch contract.
// Implementations build provider-specific queries from the grid cell
// (bounding box, point+radius, or geohash+radius), parse the response
// into raw records, and surface HTTP failures as typed errors for the
// retry executor — never swallow them.
type Source interface {
	// Provider returns the provider this source adapts.
	Provider() venues.ProviderID

	// Step returns the sweep grid step in degrees, sized to the
	// provider's per-request result cap.
	Step() float64

	// Delay returns the minimum pause between consecutive requests to
	// this provider.
	Delay() time.Duration

	// FetchPage fetches one page of raw records for a cell.
	FetchPage(ctx context.Context, cell geo.Cell, pageToken string) (Page, error)
}

// VenueResolver is implemented by sources whose event payloads may carry
// only a venue id, requiring a secondary per-record fetch. The fan-out
// respects the same pacing as primary requests; resolution failure is a
// record-level skip, not a page failure.
type VenueResolver interface {
	ResolveVenue(ctx context.Context, externalID string) (RawVenue, error)
}
