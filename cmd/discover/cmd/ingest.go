package cmd

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	discover "github.com/FairHead/eventourismo-discover"
	"github.com/FairHead/eventourismo-discover/internal/config"
	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/internal/metrics"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
	"github.com/FairHead/eventourismo-discover/pkg/logging"
)

var ingestFlags struct {
	providers     []string
	bbox          string
	territoryPath string
	dryRun        bool
	geocode       bool
	every         time.Duration
	metricsAddr   string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingestion pass over the territory",
	Long: `Sweeps the selected providers over the configured territory and
upserts every sighting into the canonical registry. With --every the
pass repeats on an interval until interrupted.`,
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringSliceVar(&ingestFlags.providers, "providers", nil,
		"providers to sweep (osm, ticketmaster/tm, eventbrite/eb); default all")
	f.StringVar(&ingestFlags.bbox, "bbox", "",
		"override territory as minLat,minLng,maxLat,maxLng")
	f.StringVar(&ingestFlags.territoryPath, "territory", "",
		"path to a territory YAML file")
	f.BoolVar(&ingestFlags.dryRun, "dry-run", false,
		"run against an in-memory store, writing nothing to the database")
	f.BoolVar(&ingestFlags.geocode, "geocode", false,
		"backfill missing address fields via reverse geocoding")
	f.DurationVar(&ingestFlags.every, "every", 0,
		"repeat the pass on this interval (0 runs once)")
	f.StringVar(&ingestFlags.metricsAddr, "metrics", "",
		"serve Prometheus metrics on this address (e.g. :6060)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := *logging.Default()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	for _, name := range ingestFlags.providers {
		if !discover.KnownProvider(name) {
			return errors.NewConfigError("cli", fmt.Sprintf("unknown provider %q", name), nil)
		}
	}

	opts := []discover.Option{discover.WithLogger(log)}
	if len(ingestFlags.providers) > 0 {
		opts = append(opts, discover.WithProviders(ingestFlags.providers...))
	}
	if ingestFlags.dryRun {
		opts = append(opts, discover.WithDryRun())
	}
	if ingestFlags.geocode {
		opts = append(opts, discover.WithGeocoding())
	}

	territory, err := resolveTerritory(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, discover.WithTerritory(territory))

	m := metrics.New()
	opts = append(opts, discover.WithMetrics(m))
	if addr := firstNonEmpty(ingestFlags.metricsAddr, cfg.MetricsAddr); addr != "" {
		go serveMetrics(addr, m)
	}

	for {
		summary, err := discover.Run(ctx, cfg, opts...)
		if err != nil {
			return err
		}
		logSummary(log, summary)

		if ingestFlags.every <= 0 {
			return nil
		}
		// Jitter keeps repeated passes from hitting provider rate windows
		// at the exact same phase every interval.
		wait := ingestFlags.every + time.Duration(rand.Int63n(int64(ingestFlags.every/10)+1))
		log.Info().Dur("wait", wait).Msg("sleeping until next pass")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// resolveTerritory applies the CLI overrides: --bbox beats --territory
// beats the configured territory.
func resolveTerritory(cfg *config.Config) (config.Territory, error) {
	if ingestFlags.bbox != "" {
		box, err := parseBBox(ingestFlags.bbox)
		if err != nil {
			return config.Territory{}, err
		}
		return config.Territory{Name: "custom", BBox: box}, nil
	}
	if ingestFlags.territoryPath != "" {
		return config.LoadTerritory(ingestFlags.territoryPath)
	}
	return cfg.Territory, nil
}

// parseBBox parses "minLat,minLng,maxLat,maxLng".
func parseBBox(s string) (geo.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.BBox{}, errors.NewConfigError("cli",
			"--bbox expects minLat,minLng,maxLat,maxLng", nil)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BBox{}, errors.NewConfigError("cli", "invalid --bbox coordinate "+p, err)
		}
		vals[i] = v
	}
	box := geo.BBox{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	if err := box.Validate(); err != nil {
		return geo.BBox{}, err
	}
	return box, nil
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logging.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Error().Err(err).Msg("metrics listener stopped")
	}
}

func logSummary(log zerolog.Logger, summary discover.Summary) {
	for provider, result := range summary.Providers {
		event := log.Info().
			Str("provider", provider).
			Int("cells", result.Sweep.Cells).
			Int("failed_cells", result.Sweep.FailedCells).
			Int("pages", result.Sweep.Pages).
			Int("seen", result.Counters.Seen).
			Int("inserted", result.Counters.Inserted).
			Int("merged", result.Counters.Merged).
			Int("skipped", result.Counters.Skipped).
			Int("failed", result.Counters.Failed).
			Int("events_processed", result.Counters.EventsProcessed())
		if result.Err != nil {
			event = event.AnErr("sweep_error", result.Err)
		}
		event.Msg("provider pass complete")
	}

	totals := summary.Totals()
	log.Info().
		Str("territory", summary.Territory).
		Dur("duration", summary.Duration()).
		Int("seen", totals.Seen).
		Int("inserted", totals.Inserted).
		Int("merged", totals.Merged).
		Int("failed", totals.Failed).
		Int("events_processed", totals.EventsProcessed()).
		Msg("ingestion pass complete")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
