// Package ingest is the per-provider upsert pipeline: every raw record
// fetched by the sweep flows through normalize → match → insert-or-merge,
// and every raw event additionally resolves its venue first. Failures are
// contained to the record that caused them; the pipeline keeps counting
// and keeps going.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/match"
	"github.com/FairHead/eventourismo-discover/internal/merge"
	"github.com/FairHead/eventourismo-discover/internal/metrics"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/store"
	"github.com/FairHead/eventourismo-discover/internal/sweep"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// Counters accumulates one pipeline run's outcomes. Counters are scoped
// to the run, never global, so concurrent runs do not bleed into each
// other.
type Counters struct {
	Seen     int // records the provider returned, including dropped ones
	Inserted int
	Merged   int
	Skipped  int
	Failed   int

	EventsInserted int
	EventsMerged   int
	EventsSkipped  int
	EventsFailed   int
}

// EventsProcessed is the number of event records that reached a terminal
// state.
func (c Counters) EventsProcessed() int {
	return c.EventsInserted + c.EventsMerged + c.EventsSkipped + c.EventsFailed
}

// Add folds other into c.
func (c *Counters) Add(other Counters) {
	c.Seen += other.Seen
	c.Inserted += other.Inserted
	c.Merged += other.Merged
	c.Skipped += other.Skipped
	c.Failed += other.Failed
	c.EventsInserted += other.EventsInserted
	c.EventsMerged += other.EventsMerged
	c.EventsSkipped += other.EventsSkipped
	c.EventsFailed += other.EventsFailed
}

// AddressEnricher backfills locality fields for a coordinate pair. It
// is consulted only on insert and only for fields the provider left
// empty; a lookup failure costs nothing but the backfill.
type AddressEnricher interface {
	ReverseAddress(ctx context.Context, lat, lng float64) (city, country, postal string, err error)
}

// Pipeline upserts one provider's raw records into the canonical store.
type Pipeline struct {
	src      sources.Source
	resolver sources.VenueResolver // nil when the provider embeds venues
	store    store.Store
	matcher  *match.Matcher
	retry    transport.RetryPolicy
	metrics  *metrics.Metrics
	owner    string
	log      zerolog.Logger
	enricher AddressEnricher // nil disables address backfill

	counters Counters
}

// NewPipeline creates a pipeline for src. If src also implements
// sources.VenueResolver, event venues missing from the payload are
// resolved with secondary fetches.
func NewPipeline(src sources.Source, st store.Store, owner string, retry transport.RetryPolicy, m *metrics.Metrics, log zerolog.Logger) *Pipeline {
	resolver, _ := src.(sources.VenueResolver)
	return &Pipeline{
		src:      src,
		resolver: resolver,
		store:    st,
		matcher:  match.NewMatcher(st, match.DefaultRadiusMeters, log),
		retry:    retry,
		metrics:  m,
		owner:    owner,
		log:      log,
	}
}

// SetEnricher enables reverse-geocoded address backfill on inserts.
func (p *Pipeline) SetEnricher(e AddressEnricher) { p.enricher = e }

// Counters returns the outcomes accumulated so far.
func (p *Pipeline) Counters() Counters { return p.counters }

// HandlePage is the sweep.PageHandler for this pipeline. Record-level
// failures are counted, never returned: one bad record must not fail its
// cell.
func (p *Pipeline) HandlePage(ctx context.Context, _ geo.Cell, page sources.Page) error {
	p.counters.Seen += page.Seen
	p.metrics.Records.WithLabelValues(string(p.src.Provider()), metrics.OutcomeSeen).
		Add(float64(page.Seen))

	for _, raw := range page.Venues {
		_, outcome := p.upsertVenue(ctx, raw)
		p.countVenue(outcome)
	}
	for _, raw := range page.Events {
		p.ingestEvent(ctx, raw)
	}
	return nil
}

var _ sweep.PageHandler = (*Pipeline)(nil).HandlePage

// upsertVenue runs one raw venue through match → insert-or-merge and
// returns the canonical venue it ended up in.
func (p *Pipeline) upsertVenue(ctx context.Context, raw sources.RawVenue) (venues.Venue, string) {
	provider := string(raw.Provider)
	if !raw.Usable() {
		return venues.Venue{}, metrics.OutcomeSkipped
	}

	matched, err := p.matcher.Match(ctx, raw)
	if err != nil {
		p.log.Error().Err(err).
			Str("provider", provider).
			Str("external_id", raw.ExternalID).
			Msg("candidate lookup failed")
		return venues.Venue{}, metrics.OutcomeFailed
	}

	now := time.Now().UTC()
	if matched == nil {
		v := merge.NewVenue(raw, p.owner, now)
		p.enrichAddress(ctx, &v)
		id, err := p.store.InsertVenue(ctx, v)
		if err != nil {
			p.log.Error().Err(err).
				Str("provider", provider).
				Str("external_id", raw.ExternalID).
				Msg("venue insert failed")
			return venues.Venue{}, metrics.OutcomeFailed
		}
		v.ID = id
		p.log.Debug().
			Str("provider", provider).
			Str("venue_id", id).
			Str("name", v.Name).
			Msg("inserted venue")
		return v, metrics.OutcomeInserted
	}

	patch := merge.Venue(*matched, raw, now)
	if patch.IsZero() {
		// The sighting contributes nothing new; converged.
		return *matched, metrics.OutcomeMerged
	}
	if err := p.store.UpdateVenue(ctx, matched.ID, patch); err != nil {
		p.log.Error().Err(err).
			Str("provider", provider).
			Str("venue_id", matched.ID).
			Msg("venue merge failed")
		return venues.Venue{}, metrics.OutcomeFailed
	}
	merged := *matched
	applyVenuePatch(&merged, patch)
	p.log.Debug().
		Str("provider", provider).
		Str("venue_id", merged.ID).
		Str("name", merged.Name).
		Msg("merged venue")
	return merged, metrics.OutcomeMerged
}

// ingestEvent resolves the event's venue, upserts the venue, then
// inserts or merges the event keyed by attribution containment. An event
// whose venue cannot be resolved is dropped, not failed: the record was
// well-formed, the linkage just went nowhere.
func (p *Pipeline) ingestEvent(ctx context.Context, raw sources.RawEvent) {
	provider := string(raw.Provider)

	if raw.Title == "" || raw.StartsAt.IsZero() {
		p.countEvent(metrics.OutcomeSkipped)
		return
	}

	rawVenue, ok := p.resolveVenue(ctx, raw)
	if !ok {
		p.countEvent(metrics.OutcomeSkipped)
		return
	}

	venue, outcome := p.upsertVenue(ctx, rawVenue)
	p.countVenue(outcome)
	if outcome == metrics.OutcomeFailed || outcome == metrics.OutcomeSkipped {
		p.countEvent(metrics.OutcomeSkipped)
		return
	}

	existing, err := p.store.FindEventBySource(ctx, raw.Provider, raw.ExternalID)
	if err != nil {
		p.log.Error().Err(err).
			Str("provider", provider).
			Str("external_id", raw.ExternalID).
			Msg("event lookup failed")
		p.countEvent(metrics.OutcomeFailed)
		return
	}

	now := time.Now().UTC()
	if existing == nil {
		if _, err := p.store.InsertEvent(ctx, merge.NewEvent(raw, venue, p.owner, now)); err != nil {
			p.log.Error().Err(err).
				Str("provider", provider).
				Str("external_id", raw.ExternalID).
				Msg("event insert failed")
			p.countEvent(metrics.OutcomeFailed)
			return
		}
		p.countEvent(metrics.OutcomeInserted)
		return
	}

	patch := merge.Event(*existing, raw, now)
	if !patch.IsZero() {
		if err := p.store.UpdateEvent(ctx, existing.ID, patch); err != nil {
			p.log.Error().Err(err).
				Str("provider", provider).
				Str("event_id", existing.ID).
				Msg("event merge failed")
			p.countEvent(metrics.OutcomeFailed)
			return
		}
	}
	p.countEvent(metrics.OutcomeMerged)
}

// resolveVenue produces the raw venue an event belongs to: embedded in
// the payload when the provider expanded it, otherwise fetched with a
// paced secondary request.
func (p *Pipeline) resolveVenue(ctx context.Context, raw sources.RawEvent) (sources.RawVenue, bool) {
	if raw.Venue != nil {
		return *raw.Venue, true
	}
	if raw.VenueExternalID == "" || p.resolver == nil {
		return sources.RawVenue{}, false
	}

	// Secondary fetches share the provider's pacing with the sweep.
	if d := p.src.Delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return sources.RawVenue{}, false
		case <-timer.C:
		}
	}

	var resolved sources.RawVenue
	err := p.retry.Do(ctx, "resolve venue "+raw.VenueExternalID, func(ctx context.Context) error {
		v, err := p.resolver.ResolveVenue(ctx, raw.VenueExternalID)
		if err != nil {
			return err
		}
		resolved = v
		return nil
	})
	if err != nil {
		p.log.Warn().Err(err).
			Str("provider", string(raw.Provider)).
			Str("venue_external_id", raw.VenueExternalID).
			Msg("venue resolution failed, dropping event")
		return sources.RawVenue{}, false
	}
	return resolved, true
}

// enrichAddress fills the venue's locality fields from a reverse
// geocode when the provider left them empty.
func (p *Pipeline) enrichAddress(ctx context.Context, v *venues.Venue) {
	if p.enricher == nil || (v.City != "" && v.Country != "" && v.PostalCode != "") {
		return
	}
	city, country, postal, err := p.enricher.ReverseAddress(ctx, v.Coordinates.Lat, v.Coordinates.Lng)
	if err != nil {
		p.log.Debug().Err(err).
			Str("name", v.Name).
			Msg("address backfill failed")
		return
	}
	if v.City == "" {
		v.City = city
	}
	if v.Country == "" {
		v.Country = country
	}
	if v.PostalCode == "" {
		v.PostalCode = postal
	}
}

func (p *Pipeline) countVenue(outcome string) {
	provider := string(p.src.Provider())
	switch outcome {
	case metrics.OutcomeInserted:
		p.counters.Inserted++
	case metrics.OutcomeMerged:
		p.counters.Merged++
	case metrics.OutcomeSkipped:
		p.counters.Skipped++
	case metrics.OutcomeFailed:
		p.counters.Failed++
	}
	p.metrics.Records.WithLabelValues(provider, outcome).Inc()
}

func (p *Pipeline) countEvent(outcome string) {
	provider := string(p.src.Provider())
	switch outcome {
	case metrics.OutcomeInserted:
		p.counters.EventsInserted++
	case metrics.OutcomeMerged:
		p.counters.EventsMerged++
	case metrics.OutcomeSkipped:
		p.counters.EventsSkipped++
	case metrics.OutcomeFailed:
		p.counters.EventsFailed++
	}
	p.metrics.Events.WithLabelValues(provider, outcome).Inc()
}

// applyVenuePatch mirrors the store-side patch application so the
// pipeline can hand the post-merge venue to the event path without a
// re-read.
func applyVenuePatch(v *venues.Venue, patch merge.VenuePatch) {
	if patch.Name != "" {
		v.Name = patch.Name
	}
	if patch.Address != "" {
		v.Address = patch.Address
	}
	if patch.City != "" {
		v.City = patch.City
	}
	if patch.Country != "" {
		v.Country = patch.Country
	}
	if patch.PostalCode != "" {
		v.PostalCode = patch.PostalCode
	}
	if patch.Phone != "" {
		v.Phone = patch.Phone
	}
	if patch.Website != "" {
		v.Website = patch.Website
	}
	if patch.Categories != nil {
		v.Categories = patch.Categories
	}
	if patch.Sources != nil {
		v.Sources = patch.Sources
	}
}
