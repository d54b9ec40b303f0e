// Package merge computes field-level patches that fold an incoming
// provider sighting into an existing canonical record. The policy is
// additive: scalar fields are filled only when absent, collections are
// unioned, and nothing a previous sighting (or a human editor) set is
// ever cleared. Applying the same sighting twice yields a zero patch,
// which makes repeated runs converge.
package merge

import (
	"time"

	"github.com/FairHead/eventourismo-discover/internal/match"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// nameGainThreshold is how many characters longer an incoming name must
// be before it replaces the stored one. Longer names tend to be more
// descriptive ("Hirsch" vs "Hirsch Live Music"), but a marginal gain is
// usually provider noise.
const nameGainThreshold = 5

// VenuePatch is the set of venue mutations one sighting contributes.
// The empty string (or nil slice) means "leave unchanged"; the policy
// never clears a field, so no sentinel for deletion is needed.
type VenuePatch struct {
	Name       string
	Address    string
	City       string
	Country    string
	PostalCode string
	Phone      string
	Website    string
	Categories []string           // full replacement when non-nil
	Sources    []venues.SourceRef // full replacement when non-nil
}

// IsZero reports whether the patch mutates nothing.
func (p VenuePatch) IsZero() bool {
	return p.Name == "" && p.Address == "" && p.City == "" && p.Country == "" &&
		p.PostalCode == "" && p.Phone == "" && p.Website == "" &&
		p.Categories == nil && p.Sources == nil
}

// EventPatch is the set of event mutations one sighting contributes.
type EventPatch struct {
	Description string
	TicketURL   string
	Status      string
	EndsAt      time.Time
	Images      []string           // full replacement when non-nil
	Sources     []venues.SourceRef // full replacement when non-nil
}

// IsZero reports whether the patch mutates nothing.
func (p EventPatch) IsZero() bool {
	return p.Description == "" && p.TicketURL == "" && p.Status == "" &&
		p.EndsAt.IsZero() && p.Images == nil && p.Sources == nil
}

// Venue computes the patch that folds raw into existing.
func Venue(existing venues.Venue, raw sources.RawVenue, now time.Time) VenuePatch {
	var p VenuePatch

	if better := betterName(existing.Name, raw.Name); better != "" {
		p.Name = better
	}
	p.Address = fill(existing.Address, raw.Address)
	p.City = fill(existing.City, raw.City)
	p.Country = fill(existing.Country, raw.Country)
	p.PostalCode = fill(existing.PostalCode, raw.PostalCode)
	p.Phone = fill(existing.Phone, raw.Phone)
	p.Website = fill(existing.Website, raw.Website)

	if merged, changed := unionStrings(existing.Categories, raw.Categories); changed {
		p.Categories = merged
	}
	if merged, changed := upsertSource(existing.Sources, raw.SourceRef(now)); changed {
		p.Sources = merged
	}
	return p
}

// Event computes the patch that folds raw into existing.
func Event(existing venues.Event, raw sources.RawEvent, now time.Time) EventPatch {
	var p EventPatch

	p.Description = fill(existing.Description, raw.Description)
	p.TicketURL = fill(existing.TicketURL, raw.TicketURL)
	p.Status = fill(existing.Status, raw.Status)
	if existing.EndsAt.IsZero() && !raw.EndsAt.IsZero() {
		p.EndsAt = raw.EndsAt
	}

	if merged, changed := unionStrings(existing.Images, raw.Images); changed {
		p.Images = merged
	}
	if merged, changed := upsertSource(existing.Sources, raw.SourceRef(now)); changed {
		p.Sources = merged
	}
	return p
}

// NewVenue builds the canonical record for a first, unmatched sighting.
func NewVenue(raw sources.RawVenue, owner string, now time.Time) venues.Venue {
	return venues.Venue{
		Name:        match.DisplayName(raw.Name),
		Coordinates: venues.Coordinates{Lat: raw.Lat, Lng: raw.Lng},
		Address:     raw.Address,
		City:        raw.City,
		Country:     raw.Country,
		PostalCode:  raw.PostalCode,
		Phone:       raw.Phone,
		Website:     raw.Website,
		Categories:  dedupe(raw.Categories),
		Sources:     []venues.SourceRef{raw.SourceRef(now)},
		CreatedBy:   owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewEvent builds the canonical record for a first event sighting,
// anchored to its resolved venue.
func NewEvent(raw sources.RawEvent, venue venues.Venue, owner string, now time.Time) venues.Event {
	return venues.Event{
		VenueID:     venue.ID,
		Title:       raw.Title,
		StartsAt:    raw.StartsAt,
		EndsAt:      raw.EndsAt,
		Status:      raw.Status,
		Description: raw.Description,
		TicketURL:   raw.TicketURL,
		Images:      dedupe(raw.Images),
		Coordinates: venue.Coordinates,
		Sources:     []venues.SourceRef{raw.SourceRef(now)},
		CreatedBy:   owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// betterName returns the cleaned incoming name when it should replace
// the stored one, empty otherwise. The incoming name is stripped of
// trailing legal suffixes before comparison, so "Hirsch Live Music GmbH"
// competes (and is stored) as "Hirsch Live Music".
func betterName(existing, incoming string) string {
	cleaned := match.DisplayName(incoming)
	if cleaned == "" || cleaned == existing {
		return ""
	}
	if len(cleaned) > len(existing)+nameGainThreshold {
		return cleaned
	}
	return ""
}

// fill returns incoming when existing is absent, empty otherwise.
func fill(existing, incoming string) string {
	if existing == "" && incoming != "" {
		return incoming
	}
	return ""
}

// unionStrings unions incoming into existing by value equality,
// preserving stored order and appending new values in arrival order.
func unionStrings(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	merged := existing
	changed := false
	for _, v := range incoming {
		if v == "" || seen[v] {
			continue
		}
		if !changed {
			merged = append([]string(nil), existing...)
			changed = true
		}
		merged = append(merged, v)
		seen[v] = true
	}
	if !changed {
		return nil, false
	}
	return merged, true
}

// upsertSource folds one attribution entry into the set, keyed by
// (provider, externalId). A same-key entry is replaced only when its
// payload differs; the sync timestamp alone does not count as new
// information, so re-ingesting an unchanged record stays a no-op.
func upsertSource(existing []venues.SourceRef, ref venues.SourceRef) ([]venues.SourceRef, bool) {
	for i, s := range existing {
		if s.Provider != ref.Provider || s.ExternalID != ref.ExternalID {
			continue
		}
		if s.URL == ref.URL {
			return nil, false
		}
		merged := append([]venues.SourceRef(nil), existing...)
		merged[i] = ref
		return merged, true
	}
	merged := append(append([]venues.SourceRef(nil), existing...), ref)
	return merged, true
}

// dedupe removes duplicate values preserving first occurrence.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
