// Package discover consolidates venue and event records from several
// external providers into one canonical, deduplicated registry. Each
// provider is swept over the configured territory as an independent
// sequential pipeline; pipelines run concurrently and interact only
// through the canonical store, whose merge policy is commutative and
// idempotent.
package discover

import (
	"context"
	"sync"
	"time"

	"github.com/FairHead/eventourismo-discover/internal/config"
	"github.com/FairHead/eventourismo-discover/internal/geocode"
	"github.com/FairHead/eventourismo-discover/internal/ingest"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/sources/eventbrite"
	"github.com/FairHead/eventourismo-discover/internal/sources/osm"
	"github.com/FairHead/eventourismo-discover/internal/sources/ticketmaster"
	"github.com/FairHead/eventourismo-discover/internal/store"
	"github.com/FairHead/eventourismo-discover/internal/sweep"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

// Run executes one full ingestion pass over the territory and returns
// the per-provider outcome summary. Setup failures (bad configuration,
// missing credentials, unreachable store) are fatal; once the sweeps
// start, failures are contained to cells and records.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (Summary, error) {
	o := newOptions(cfg, opts...)
	log := o.log

	st, err := openStore(ctx, cfg, o)
	if err != nil {
		return Summary{}, err
	}
	defer st.Close()

	srcs, err := buildSources(cfg, o)
	if err != nil {
		return Summary{}, err
	}

	retry := transport.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}
	if retry.MaxAttempts <= 0 {
		retry = transport.DefaultRetryPolicy()
	}

	var enricher ingest.AddressEnricher
	if o.geocode {
		enricher = geocode.New()
	}

	// Every record gets a known creator identity.
	owner := cfg.SystemOwner
	if owner == "" {
		owner = config.DefaultSystemOwner
	}

	summary := Summary{
		Territory: o.territory.Name,
		StartedAt: time.Now().UTC(),
		Providers: make(map[string]ProviderResult, len(srcs)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, src := range srcs {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			provider := string(src.Provider())
			plog := log.With().Str("provider", provider).Logger()

			pipeline := ingest.NewPipeline(src, st, owner, retry, o.metrics, plog)
			if enricher != nil {
				pipeline.SetEnricher(enricher)
			}

			sweeper := sweep.New(retry, o.metrics, plog)
			stats, err := sweeper.Run(ctx, src, o.territory.BBox, pipeline.HandlePage)

			mu.Lock()
			summary.Providers[provider] = ProviderResult{
				Counters: pipeline.Counters(),
				Sweep:    stats,
				Err:      err,
			}
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	summary.FinishedAt = time.Now().UTC()
	for _, r := range summary.Providers {
		if r.Err != nil && ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}
	return summary, nil
}

// openStore connects the canonical store: in-memory for dry runs,
// Postgres otherwise. An unreachable store is a fatal setup error.
func openStore(ctx context.Context, cfg *config.Config, o *options) (store.Store, error) {
	if o.dryRun {
		return store.NewMemory(), nil
	}
	if cfg.PostgresDSN == "" {
		return nil, errors.NewConfigError("store", "DISCOVER_PG_DSN is not set", nil)
	}
	return store.NewPostgres(ctx, cfg.PostgresDSN)
}

// buildSources assembles the requested provider adapters. Requesting a
// credentialed provider without its credential is a fatal setup error,
// not a silent skip.
func buildSources(cfg *config.Config, o *options) ([]sources.Source, error) {
	var srcs []sources.Source

	if o.providers[ProviderOSM] {
		var osmOpts []osm.Option
		if cfg.OverpassEndpoint != "" {
			osmOpts = append(osmOpts, osm.WithEndpoint(cfg.OverpassEndpoint))
		}
		srcs = append(srcs, osm.New(osmOpts...))
	}
	if o.providers[ProviderTicketmaster] {
		if cfg.TicketmasterAPIKey == "" {
			return nil, errors.NewConfigError("sources",
				"ticketmaster requested but TICKETMASTER_API_KEY is not set",
				errors.ErrCredentialsMissing)
		}
		srcs = append(srcs, ticketmaster.New(cfg.TicketmasterAPIKey))
	}
	if o.providers[ProviderEventbrite] {
		if cfg.EventbriteToken == "" {
			return nil, errors.NewConfigError("sources",
				"eventbrite requested but EVENTBRITE_TOKEN is not set",
				errors.ErrCredentialsMissing)
		}
		srcs = append(srcs, eventbrite.New(cfg.EventbriteToken))
	}

	if len(srcs) == 0 {
		return nil, errors.NewConfigError("sources", "no providers selected", nil)
	}
	return srcs, nil
}
