package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/match"
	"github.com/FairHead/eventourismo-discover/internal/merge"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
	"github.com/FairHead/eventourismo-discover/pkg/venues"
)

// metersPerDegreeLat is close enough for the small prefilter boxes the
// candidate query uses.
const metersPerDegreeLat = 111_320.0

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and verifies the
// connection before returning.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.NewConfigError("store", "invalid postgres dsn", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WrapStore("connect", "pool", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapStore("ping", "pool", "", err)
	}
	return &Postgres{pool: pool}, nil
}

// sourceRecord is the jsonb shape of one attribution entry. Attribution
// is typed in the domain model and serialized only here.
type sourceRecord struct {
	Provider   string    `json:"provider"`
	ExternalID string    `json:"externalId"`
	URL        string    `json:"url,omitempty"`
	SyncedAt   time.Time `json:"syncedAt"`
}

func encodeSources(refs []venues.SourceRef) ([]byte, error) {
	records := make([]sourceRecord, len(refs))
	for i, r := range refs {
		records[i] = sourceRecord{
			Provider:   string(r.Provider),
			ExternalID: r.ExternalID,
			URL:        r.URL,
			SyncedAt:   r.SyncedAt,
		}
	}
	return json.Marshal(records)
}

func decodeSources(raw []byte) ([]venues.SourceRef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []sourceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	refs := make([]venues.SourceRef, len(records))
	for i, r := range records {
		refs[i] = venues.SourceRef{
			Provider:   venues.ProviderID(r.Provider),
			ExternalID: r.ExternalID,
			URL:        r.URL,
			SyncedAt:   r.SyncedAt,
		}
	}
	return refs, nil
}

const venueColumns = `id, name, lat, lng, address, city, country, postal_code,
	phone, website, categories, sources, created_by, created_at, updated_at`

func scanVenue(row pgx.Row) (venues.Venue, error) {
	var v venues.Venue
	var rawSources []byte
	err := row.Scan(&v.ID, &v.Name, &v.Coordinates.Lat, &v.Coordinates.Lng,
		&v.Address, &v.City, &v.Country, &v.PostalCode, &v.Phone, &v.Website,
		&v.Categories, &rawSources, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return venues.Venue{}, err
	}
	if v.Sources, err = decodeSources(rawSources); err != nil {
		return venues.Venue{}, errors.WrapParse("json", "venue sources", err)
	}
	return v, nil
}

// FindVenueCandidates implements Store. A coarse box filter narrows the
// scan; exact great-circle distance ranks the survivors, with the name
// key breaking distance ties.
func (p *Postgres) FindVenueCandidates(ctx context.Context, nameKey string, lat, lng, radiusMeters float64) ([]venues.Venue, error) {
	latDelta := radiusMeters / metersPerDegreeLat
	lngDelta := radiusMeters / (metersPerDegreeLat * math.Max(0.01, math.Cos(lat*math.Pi/180)))

	rows, err := p.pool.Query(ctx, `
		SELECT `+venueColumns+`
		FROM venues
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4`,
		lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
	if err != nil {
		return nil, errors.WrapStore("query", "venue candidates", nameKey, err)
	}
	defer rows.Close()

	type ranked struct {
		venue    venues.Venue
		dist     float64
		keyMatch bool
	}
	var hits []ranked
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, errors.WrapStore("scan", "venue", "", err)
		}
		d := geo.DistanceMeters(lat, lng, v.Coordinates.Lat, v.Coordinates.Lng)
		if d > radiusMeters {
			continue
		}
		hits = append(hits, ranked{
			venue:    v,
			dist:     d,
			keyMatch: match.Normalize(v.Name) == nameKey,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapStore("query", "venue candidates", nameKey, err)
	}
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
func (p *Postgres) InsertVenue(ctx context.Context, v venues.Venue) (string, error) {
	rawSources, err := encodeSources(v.Sources)
	if err != nil {
		return "", errors.WrapParse("json", "venue sources", err)
	}
	var id string
	err = p.pool.QueryRow(ctx, `
		INSERT INTO venues (name, name_key, lat, lng, address, city, country,
			postal_code, phone, website, categories, sources, created_by,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		RETURNING id`,
		v.Name, match.Normalize(v.Name), v.Coordinates.Lat, v.Coordinates.Lng,
		v.Address, v.City, v.Country, v.PostalCode, v.Phone, v.Website,
		v.Categories, rawSources, v.CreatedBy, v.CreatedAt).Scan(&id)
	if err != nil {
		return "", errors.WrapStore("insert", "venue", v.Name, err)
	}
	return id, nil
}

// UpdateVenue implements Store. Only the fields the patch names are
// touched, so concurrent pipelines never clobber each other's fills.
func (p *Postgres) UpdateVenue(ctx context.Context, id string, patch merge.VenuePatch) error {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != "" {
		add("name", patch.Name)
		add("name_key", match.Normalize(patch.Name))
	}
	if patch.Address != "" {
		add("address", patch.Address)
	}
	if patch.City != "" {
		add("city", patch.City)
	}
	if patch.Country != "" {
		add("country", patch.Country)
	}
	if patch.PostalCode != "" {
		add("postal_code", patch.PostalCode)
	}
	if patch.Phone != "" {
		add("phone", patch.Phone)
	}
	if patch.Website != "" {
		add("website", patch.Website)
	}
	if patch.Categories != nil {
		add("categories", patch.Categories)
	}
	if patch.Sources != nil {
		raw, err := encodeSources(patch.Sources)
		if err != nil {
			return errors.WrapParse("json", "venue sources", err)
		}
		add("sources", raw)
	}

	tag, err := p.pool.Exec(ctx,
		"UPDATE venues SET "+strings.Join(set, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return errors.WrapStore("update", "venue", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.WrapStore("update", "venue", id, errors.ErrNotFound)
	}
	return nil
}

const eventColumns = `id, venue_id, title, starts_at, ends_at, status, description,
	ticket_url, images, lat, lng, sources, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (venues.Event, error) {
	var e venues.Event
	var rawSources []byte
	var endsAt *time.Time
	err := row.Scan(&e.ID, &e.VenueID, &e.Title, &e.StartsAt, &endsAt, &e.Status,
		&e.Description, &e.TicketURL, &e.Images, &e.Coordinates.Lat,
		&e.Coordinates.Lng, &rawSources, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return venues.Event{}, err
	}
	if endsAt != nil {
		e.EndsAt = *endsAt
	}
	if e.Sources, err = decodeSources(rawSources); err != nil {
		return venues.Event{}, errors.WrapParse("json", "event sources", err)
	}
	return e, nil
}

// FindEventBySource implements Store using jsonb containment on the
// attribution set.
func (p *Postgres) FindEventBySource(ctx context.Context, provider venues.ProviderID, externalID string) (*venues.Event, error) {
	key, err := json.Marshal([]map[string]string{{
		"provider":   string(provider),
		"externalId": externalID,
	}})
	if err != nil {
		return nil, errors.WrapParse("json", "event source key", err)
	}

	row := p.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE sources @> $1
		LIMIT 1`, key)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WrapStore("query", "event", externalID, err)
	}
	return &e, nil
}

// InsertEvent implements Store.
func (p *Postgres) InsertEvent(ctx context.Context, e venues.Event) (string, error) {
	rawSources, err := encodeSources(e.Sources)
	if err != nil {
		return "", errors.WrapParse("json", "event sources", err)
	}
	var endsAt *time.Time
	if !e.EndsAt.IsZero() {
		endsAt = &e.EndsAt
	}
	var id string
	err = p.pool.QueryRow(ctx, `
		INSERT INTO events (venue_id, title, starts_at, ends_at, status,
			description, ticket_url, images, lat, lng, sources, created_by,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		RETURNING id`,
		e.VenueID, e.Title, e.StartsAt, endsAt, e.Status, e.Description,
		e.TicketURL, e.Images, e.Coordinates.Lat, e.Coordinates.Lng,
		rawSources, e.CreatedBy, e.CreatedAt).Scan(&id)
	if err != nil {
		return "", errors.WrapStore("insert", "event", e.Title, err)
	}
	return id, nil
}

// UpdateEvent implements Store.
func (p *Postgres) UpdateEvent(ctx context.Context, id string, patch merge.EventPatch) error {
	set := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Description != "" {
		add("description", patch.Description)
	}
	if patch.TicketURL != "" {
		add("ticket_url", patch.TicketURL)
	}
	if patch.Status != "" {
		add("status", patch.Status)
	}
	if !patch.EndsAt.IsZero() {
		add("ends_at", patch.EndsAt)
	}
	if patch.Images != nil {
		add("images", patch.Images)
	}
	if patch.Sources != nil {
		raw, err := encodeSources(patch.Sources)
		if err != nil {
			return errors.WrapParse("json", "event sources", err)
		}
		add("sources", raw)
	}

	tag, err := p.pool.Exec(ctx,
		"UPDATE events SET "+strings.Join(set, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return errors.WrapStore("update", "event", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.WrapStore("update", "event", id, errors.ErrNotFound)
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.WrapStore("ping", "pool", "", err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close() { p.pool.Close() }
