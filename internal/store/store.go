// Package store persists the canonical venue and event registry. Two
// implementations exist: a Postgres store for production and an in-memory
// store for tests and dry runs. The store provides atomic read-then-write
// per record; cross-provider correctness relies on the merge policy being
// commutative and idempotent, not on locking.
package store

import (
	"context"

	"github.com/FairHead/eventourismo-discover/internal/merge"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// Store is the canonical registry consumed by the ingestion pipeline.
// It is the only mutable resource shared between provider pipelines.
type Store interface {
	// FindVenueCandidates returns venues whose normalized name equals
	// nameKey within radiusMeters of the point, nearest first.
	FindVenueCandidates(ctx context.Context, nameKey string, lat, lng, radiusMeters float64) ([]venues.Venue, error)

	// InsertVenue stores a new canonical venue and returns its id.
	InsertVenue(ctx context.Context, v venues.Venue) (string, error)

	// UpdateVenue applies a merge patch to an existing venue.
	UpdateVenue(ctx context.Context, id string, patch merge.VenuePatch) error

	// FindEventBySource returns the event whose attribution set contains
	// the (provider, externalID) key, or nil when none does.
	FindEventBySource(ctx context.Context, provider venues.ProviderID, externalID string) (*venues.Event, error)

	// InsertEvent stores a new canonical event and returns its id.
	InsertEvent(ctx context.Context, e venues.Event) (string, error)

	// UpdateEvent applies a merge patch to an existing event.
	UpdateEvent(ctx context.Context, id string, patch merge.EventPatch) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}

// applyVenuePatch mutates v in place per the patch semantics: empty
// scalar fields and nil slices are unchanged.
func applyVenuePatch(v *venues.Venue, p merge.VenuePatch) {
	if p.Name != "" {
		v.Name = p.Name
	}
	if p.Address != "" {
		v.Address = p.Address
	}
	if p.City != "" {
		v.City = p.City
	}
	if p.Country != "" {
		v.Country = p.Country
	}
	if p.PostalCode != "" {
		v.PostalCode = p.PostalCode
	}
	if p.Phone != "" {
		v.Phone = p.Phone
	}
	if p.Website != "" {
		v.Website = p.Website
	}
	if p.Categories != nil {
		v.Categories = p.Categories
	}
	if p.Sources != nil {
		v.Sources = p.Sources
	}
}

// applyEventPatch mutates e in place per the patch semantics.
func applyEventPatch(e *venues.Event, p merge.EventPatch) {
	if p.Description != "" {
		e.Description = p.Description
	}
	if p.TicketURL != "" {
		e.TicketURL = p.TicketURL
	}
	if p.Status != "" {
		e.Status = p.Status
	}
	if !p.EndsAt.IsZero() {
		e.EndsAt = p.EndsAt
	}
	if p.Images != nil {
		e.Images = p.Images
	}
	if p.Sources != nil {
		e.Sources = p.Sources
	}
}
