package merge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairHead/eventourismo-discover/internal/merge"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func osmSighting() sources.RawVenue {
	return sources.RawVenue{
		Provider:   venues.ProviderOSM,
		ExternalID: "node/1",
		Name:       "Hirsch",
		Lat:        49.4521,
		Lng:        11.0767,
		URL:        "https://www.openstreetmap.org/node/1",
		Categories: []string{"music_venue"},
	}
}

func tmSighting() sources.RawVenue {
	return sources.RawVenue{
		Provider:   venues.ProviderTicketmaster,
		ExternalID: "K123",
		Name:       "Hirsch Live Music GmbH",
		Lat:        49.45213,
		Lng:        11.07671,
		Address:    "Vogelweiherstr. 66",
		City:       "Nürnberg",
		Categories: []string{"Music"},
	}
}

func TestNewVenueCleansName(t *testing.T) {
	v := merge.NewVenue(tmSighting(), "system", now)
	assert.Equal(t, "Hirsch Live Music", v.Name)
	assert.Equal(t, "system", v.CreatedBy)
	require.Len(t, v.Sources, 1)
	assert.Equal(t, venues.ProviderTicketmaster, v.Sources[0].Provider)
	assert.Equal(t, "K123", v.Sources[0].ExternalID)
	assert.Equal(t, now, v.Sources[0].SyncedAt)
}

func TestVenueMergeUpgradesNameAndFillsFields(t *testing.T) {
	existing := merge.NewVenue(osmSighting(), "system", now)

	patch := merge.Venue(existing, tmSighting(), now)
	require.False(t, patch.IsZero())

	// "Hirsch Live Music" is more than five characters longer than "Hirsch".
	assert.Equal(t, "Hirsch Live Music", patch.Name)
	assert.Equal(t, "Vogelweiherstr. 66", patch.Address)
	assert.Equal(t, "Nürnberg", patch.City)
	assert.Equal(t, []string{"music_venue", "Music"}, patch.Categories)

	require.Len(t, patch.Sources, 2)
	assert.Equal(t, "node/1", patch.Sources[0].ExternalID)
	assert.Equal(t, "K123", patch.Sources[1].ExternalID)
}

func TestVenueMergeKeepsNameOnMarginalGain(t *testing.T) {
	existing := merge.NewVenue(osmSighting(), "system", now)

	raw := osmSighting()
	raw.Provider = venues.ProviderEventbrite
	raw.ExternalID = "77"
	raw.URL = ""
	raw.Name = "Hirsch Club" // only five characters longer

	patch := merge.Venue(existing, raw, now)
	assert.Empty(t, patch.Name)
}

func TestVenueMergeNeverOverwritesScalars(t *testing.T) {
	existing := merge.NewVenue(tmSighting(), "system", now)

	raw := osmSighting()
	raw.Address = "Somewhere Else 1"
	raw.City = "Fürth"

	patch := merge.Venue(existing, raw, now)
	assert.Empty(t, patch.Address, "address is already set and must not change")
	assert.Empty(t, patch.City)
}

func TestVenueMergeIdempotent(t *testing.T) {
	existing := merge.NewVenue(osmSighting(), "system", now)

	patch := merge.Venue(existing, osmSighting(), now.Add(time.Hour))
	assert.True(t, patch.IsZero(), "re-ingesting the same record must be a no-op, got %+v", patch)
}

func TestVenueMergeAttributionNoDuplicates(t *testing.T) {
	existing := merge.NewVenue(osmSighting(), "system", now)

	// Same key, changed payload: the entry is replaced, not appended.
	raw := osmSighting()
	raw.URL = "https://www.openstreetmap.org/node/1#map=19"
	patch := merge.Venue(existing, raw, now)
	require.Len(t, patch.Sources, 1)
	assert.Equal(t, raw.URL, patch.Sources[0].URL)
}

func TestVenueMergeCommutative(t *testing.T) {
	a, b := osmSighting(), tmSighting()

	viaA := merge.NewVenue(a, "system", now)
	applyVenue(&viaA, merge.Venue(viaA, b, now))

	viaB := merge.NewVenue(b, "system", now)
	applyVenue(&viaB, merge.Venue(viaB, a, now))

	keysA := sourceKeys(viaA.Sources)
	keysB := sourceKeys(viaB.Sources)
	assert.ElementsMatch(t, keysA, keysB)
	assert.ElementsMatch(t, viaA.Categories, viaB.Categories)
}

func TestEventMergeFillsAndUnions(t *testing.T) {
	rawTM := sources.RawEvent{
		Provider:   venues.ProviderTicketmaster,
		ExternalID: "E1",
		Title:      "Blue Night Concert",
		StartsAt:   now.Add(24 * time.Hour),
		Status:     "onsale",
		Images:     []string{"https://img/one.jpg"},
	}
	venue := venues.Venue{ID: "v1", Coordinates: venues.Coordinates{Lat: 49.45, Lng: 11.07}}
	existing := merge.NewEvent(rawTM, venue, "system", now)
	assert.Equal(t, "v1", existing.VenueID)
	assert.Equal(t, venue.Coordinates, existing.Coordinates)

	rawEB := sources.RawEvent{
		Provider:    venues.ProviderEventbrite,
		ExternalID:  "751",
		Title:       "Blue Night Concert",
		Description: "Doors at 18:00.",
		TicketURL:   "https://tickets.example/751",
		EndsAt:      now.Add(28 * time.Hour),
		Images:      []string{"https://img/one.jpg", "https://img/two.jpg"},
	}
	patch := merge.Event(existing, rawEB, now)
	require.False(t, patch.IsZero())
	assert.Equal(t, "Doors at 18:00.", patch.Description)
	assert.Equal(t, "https://tickets.example/751", patch.TicketURL)
	assert.Equal(t, rawEB.EndsAt, patch.EndsAt)
	assert.Equal(t, []string{"https://img/one.jpg", "https://img/two.jpg"}, patch.Images)
	require.Len(t, patch.Sources, 2)

	// Folding the same sighting again contributes nothing.
	applyEvent(&existing, patch)
	again := merge.Event(existing, rawEB, now.Add(time.Hour))
	assert.True(t, again.IsZero())
}

func applyVenue(v *venues.Venue, p merge.VenuePatch) {
	if p.Name != "" {
		v.Name = p.Name
	}
	if p.Address != "" {
		v.Address = p.Address
	}
	if p.City != "" {
		v.City = p.City
	}
	if p.Categories != nil {
		v.Categories = p.Categories
	}
	if p.Sources != nil {
		v.Sources = p.Sources
	}
}

func applyEvent(e *venues.Event, p merge.EventPatch) {
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

func sourceKeys(refs []venues.SourceRef) []string {
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key()
	}
	return keys
}
