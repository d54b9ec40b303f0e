// Package sweep walks a provider across the ingestion territory. The
// territory is cut into a grid sized to the provider's per-call limits,
// cells are visited in row-major order with an enforced pause between
// consecutive requests, and a failing cell is logged and skipped so the
// rest of the territory is still covered.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/metrics"
	"github.com/FairHead/eventourismo-discover/internal/sources"
	"github.com/FairHead/eventourismo-discover/internal/transport"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

// PageHandler consumes one fetched page. A handler error fails the
// current cell only; the sweep moves on to the next cell.
type PageHandler func(ctx context.Context, cell geo.Cell, page sources.Page) error

// Stats summarizes one provider sweep.
type Stats struct {
	Cells       int
	FailedCells int
	Pages       int
}

// Sweeper drives one provider over a territory.
type Sweeper struct {
	retry   transport.RetryPolicy
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a Sweeper.
func New(retry transport.RetryPolicy, m *metrics.Metrics, log zerolog.Logger) *Sweeper {
	return &Sweeper{retry: retry, metrics: m, log: log}
}

// Run sweeps src over the territory, handing every fetched page to
// handle. It returns early only when the context is canceled; any other
// failure is contained to its cell.
func (s *Sweeper) Run(ctx context.Context, src sources.Source, territory geo.BBox, handle PageHandler) (Stats, error) {
	if err := territory.Validate(); err != nil {
		return Stats{}, err
	}

	provider := string(src.Provider())
	cells := geo.Grid(territory, src.Step())
	stats := Stats{Cells: len(cells)}

	s.log.Info().
		Str("provider", provider).
		Int("cells", len(cells)).
		Float64("step_deg", src.Step()).
		Msg("starting territory sweep")

	first := true
	for _, cell := range cells {
		err := s.sweepCell(ctx, src, cell, handle, &first, &stats)
		if err == nil {
			s.metrics.Cells.WithLabelValues(provider, "ok").Inc()
			continue
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.FailedCells++
		s.metrics.Cells.WithLabelValues(provider, "failed").Inc()
		s.log.Warn().Err(err).
			Str("provider", provider).
			Str("cell", cell.Label()).
			Msg("cell failed, continuing sweep")
	}

	s.log.Info().
		Str("provider", provider).
		Int("cells", stats.Cells).
		Int("failed_cells", stats.FailedCells).
		Int("pages", stats.Pages).
		Msg("territory sweep complete")
	return stats, nil
}

// sweepCell fetches every page of one cell. The inter-request pause is
// applied before each request except the very first of the run, so
// pagination requests are paced the same as cell requests.
func (s *Sweeper) sweepCell(ctx context.Context, src sources.Source, cell geo.Cell, handle PageHandler, first *bool, stats *Stats) error {
	provider := string(src.Provider())
	pageToken := ""
	for {
		if !*first {
			if err := pause(ctx, src.Delay()); err != nil {
				return err
			}
		}
		*first = false

		var page sources.Page
		err := s.retry.Do(ctx, "fetch "+provider+" "+cell.Label(), func(ctx context.Context) error {
			p, err := src.FetchPage(ctx, cell, pageToken)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			s.metrics.Requests.WithLabelValues(provider, "error").Inc()
			return &errors.IngestError{Provider: provider, Cell: cell.Label(), Err: err}
		}
		s.metrics.Requests.WithLabelValues(provider, "ok").Inc()
		stats.Pages++

		if err := handle(ctx, cell, page); err != nil {
			return &errors.IngestError{Provider: provider, Cell: cell.Label(), Err: err}
		}
		if page.NextPage == "" {
			return nil
		}
		pageToken = page.NextPage
	}
}

// pause sleeps for d or until the context is canceled.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
