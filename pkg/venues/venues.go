// Package venues defines the canonical domain types of the discover
// pipeline: deduplicated venues and events, and the source attribution
// records linking them back to the providers that contributed them.
package venues

import (
	"fmt"
	"time"
)

// ProviderID identifies an external data provider.
type ProviderID string

// Known providers.
const (
	ProviderOSM          ProviderID = "osm"
	ProviderTicketmaster ProviderID = "ticketmaster"
	ProviderEventbrite   ProviderID = "eventbrite"
)

// String returns the provider ID as a string.
func (p ProviderID) String() string { return string(p) }

// SourceRef attributes a canonical entity to one provider sighting.
// The (Provider, ExternalID) pair is the attribution key: it is unique
// within an entity, and a re-sync with the same key replaces the stored
// entry rather than duplicating it.
type SourceRef struct {
	Provider   ProviderID `json:"provider"`
	ExternalID string     `json:"externalId"`
	URL        string     `json:"url,omitempty"`
	SyncedAt   time.Time  `json:"syncedAt,omitempty"`
}

// Key returns the unique attribution key for this reference.
func (r SourceRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Provider, r.ExternalID)
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Venue is the single deduplicated representation of a physical venue,
// merged from one or more provider sightings. Provider-sourced scalar
// fields use the empty string for "absent"; the merge policy only ever
// fills absent fields, never overwrites present ones.
type Venue struct {
	ID   string
	Name string
	Coordinates
	Address    string
	City       string
	Country    string
	PostalCode string
	Phone      string
	Website    string
	Categories []string    // set semantics, order not significant
	Sources    []SourceRef // attribution set, unique by (provider, externalId)
	CreatedBy  string      // pre-provisioned system-owner identity
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasSource reports whether the venue is already attributed to the
// given (provider, externalId) pair.
func (v *Venue) HasSource(provider ProviderID, externalID string) bool {
	for _, s := range v.Sources {
		if s.Provider == provider && s.ExternalID == externalID {
			return true
		}
	}
	return false
}

// SourceIndex returns the index of the attribution entry with the same
// key, or -1.
func (v *Venue) SourceIndex(ref SourceRef) int {
	for i, s := range v.Sources {
		if s.Provider == ref.Provider && s.ExternalID == ref.ExternalID {
			return i
		}
	}
	return -1
}

// HasCategory reports whether the venue already carries the category.
func (v *Venue) HasCategory(category string) bool {
	for _, c := range v.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Event is a canonical event held at a canonical venue. Like venues,
// events carry their own attribution set and merge fill-missing.
type Event struct {
	ID          string
	VenueID     string
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time // zero when the provider supplied no end time
	Status      string
	Description string
	TicketURL   string
	Images      []string // set semantics
	Coordinates          // propagated from the resolved venue
	Sources     []SourceRef
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasSource reports whether the event is already attributed to the
// given (provider, externalId) pair.
func (e *Event) HasSource(provider ProviderID, externalID string) bool {
	for _, s := range e.Sources {
		if s.Provider == provider && s.ExternalID == externalID {
			return true
		}
	}
	return false
}

// SourceIndex returns the index of the attribution entry with the same
// key, or -1.
func (e *Event) SourceIndex(ref SourceRef) int {
	for i, s := range e.Sources {
		if s.Provider == ref.Provider && s.ExternalID == ref.ExternalID {
			return i
		}
	}
	return -1
}

// HasImage reports whether the event already carries the image URL.
func (e *Event) HasImage(url string) bool {
	for _, img := range e.Images {
		if img == url {
			return true
		}
	}
	return false
}
