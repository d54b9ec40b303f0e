package match

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// DefaultRadiusMeters is how far apart two sightings of the same venue
// may plausibly be. Provider coordinates for one building differ by tens
// of meters; distinct venues on the same street are usually farther.
const DefaultRadiusMeters = 80

// CandidateFinder returns stored venues within radiusMeters of the
// point, nearest first. The normalized name key participates only in
// ranking, never as a filter.
type CandidateFinder interface {
	FindVenueCandidates(ctx context.Context, normalizedName string, lat, lng, radiusMeters float64) ([]venues.Venue, error)
}

// Matcher resolves incoming sightings against the venue registry.
type Matcher struct {
	store  CandidateFinder
	radius float64
	log    zerolog.Logger
}

// NewMatcher creates a Matcher over the given candidate source.
// A radius of zero selects DefaultRadiusMeters.
func NewMatcher(store CandidateFinder, radiusMeters float64, log zerolog.Logger) *Matcher {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Matcher{store: store, radius: radiusMeters, log: log}
}

// Match returns the canonical venue the sighting refers to, or nil when
// nothing is stored within the radius. With several candidates the
// nearest wins; nearby distinct venues are not disambiguated, a rare
// false merge is accepted over systematic duplicates.
func (m *Matcher) Match(ctx context.Context, raw sources.RawVenue) (*venues.Venue, error) {
	key := Normalize(raw.Name)
	if key == "" {
		return nil, nil
	}

	candidates, err := m.store.FindVenueCandidates(ctx, key, raw.Lat, raw.Lng, m.radius)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	bestDist := geo.DistanceMeters(raw.Lat, raw.Lng, best.Coordinates.Lat, best.Coordinates.Lng)
	for _, c := range candidates[1:] {
		if d := geo.DistanceMeters(raw.Lat, raw.Lng, c.Coordinates.Lat, c.Coordinates.Lng); d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > m.radius {
		return nil, nil
	}

	event := m.log.Debug()
	if bestKey := Normalize(best.Name); !strings.Contains(bestKey, key) && !strings.Contains(key, bestKey) {
		// Dissimilar names this close together may be distinct venues
		// folded into one; surface it without changing selection.
		event = m.log.Warn()
	}
	event.
		Str("provider", string(raw.Provider)).
		Str("venue_id", best.ID).
		Float64("distance_m", bestDist).
		Int("name_edit_distance", levenshtein.ComputeDistance(raw.Name, best.Name)).
		Msg("matched venue candidate")

	return &best, nil
}
