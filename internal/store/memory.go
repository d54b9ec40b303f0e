package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/match"
	"github.com/FairHead/eventourismo-discover/internal/merge"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// Memory is an in-process Store for tests and dry runs. It applies the
// same patch semantics as the Postgres store, so pipeline behavior is
// identical apart from durability.
type Memory struct {
	mu     sync.Mutex
	nextID int
	venues map[string]*venues.Venue
	events map[string]*venues.Event
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		venues: make(map[string]*venues.Venue),
		events: make(map[string]*venues.Event),
	}
}

// FindVenueCandidates implements Store: every venue within the radius,
// nearest first, name key breaking distance ties.
func (m *Memory) FindVenueCandidates(_ context.Context, nameKey string, lat, lng, radiusMeters float64) ([]venues.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type ranked struct {
		venue    venues.Venue
		dist     float64
		keyMatch bool
	}
	var hits []ranked
	for _, v := range m.venues {
		d := geo.DistanceMeters(lat, lng, v.Coordinates.Lat, v.Coordinates.Lng)
		if d > radiusMeters {
			continue
		}
		hits = append(hits, ranked{
			venue:    *v,
			dist:     d,
			keyMatch: match.Normalize(v.Name) == nameKey,
		})
	}
	// Distance ranks; an exact name key only breaks ties.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].keyMatch && !hits[j].keyMatch
	})

	out := make([]venues.Venue, len(hits))
	for i, h := range hits {
		out[i] = h.venue
	}
	return out, nil
}

// InsertVenue implements Store.
func (m *Memory) InsertVenue(_ context.Context, v venues.Venue) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	v.ID = fmt.Sprintf("venue-%d", m.nextID)
	m.venues[v.ID] = &v
	return v.ID, nil
}

// UpdateVenue implements Store.
func (m *Memory) UpdateVenue(_ context.Context, id string, patch merge.VenuePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.venues[id]
	if !ok {
		return errors.WrapStore("update", "venue", id, errors.ErrNotFound)
	}
	applyVenuePatch(v, patch)
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// FindEventBySource implements Store.
func (m *Memory) FindEventBySource(_ context.Context, provider venues.ProviderID, externalID string) (*venues.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.HasSource(provider, externalID) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

// InsertEvent implements Store.
func (m *Memory) InsertEvent(_ context.Context, e venues.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = fmt.Sprintf("event-%d", m.nextID)
	m.events[e.ID] = &e
	return e.ID, nil
}

// UpdateEvent implements Store.
func (m *Memory) UpdateEvent(_ context.Context, id string, patch merge.EventPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return errors.WrapStore("update", "event", id, errors.ErrNotFound)
	}
	applyEventPatch(e, patch)
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close() {}

// Venue returns a stored venue by id, for assertions in tests.
func (m *Memory) Venue(id string) (venues.Venue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return venues.Venue{}, false
	}
	return *v, true
}

// Venues returns all stored venues, for assertions in tests.
func (m *Memory) Venues() []venues.Venue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]venues.Venue, 0, len(m.venues))
	for _, v := range m.venues {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Events returns all stored events, for assertions in tests.
func (m *Memory) Events() []venues.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]venues.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
