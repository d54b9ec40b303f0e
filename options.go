package discover

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/FairHead/eventourismo-discover/internal/config"
	"github.com/FairHead/eventourismo-discover/internal/metrics"
	"github.com/FairHead/eventourismo-discover/pkg/logging"
)

// Provider names accepted by WithProviders. The short forms are CLI
// conveniences.
const (
	ProviderOSM          = "osm"
	ProviderTicketmaster = "ticketmaster"
	ProviderEventbrite   = "eventbrite"
)

var providerAliases = map[string]string{
	"osm":          ProviderOSM,
	"overpass":     ProviderOSM,
	"ticketmaster": ProviderTicketmaster,
	"tm":           ProviderTicketmaster,
	"eventbrite":   ProviderEventbrite,
	"eb":           ProviderEventbrite,
}

type options struct {
	providers map[string]bool
	territory config.Territory
	dryRun    bool
	geocode   bool
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// Option configures a Run.
type Option func(*options)

func newOptions(cfg *config.Config, opts ...Option) *options {
	o := &options{
		providers: map[string]bool{
			ProviderOSM:          true,
			ProviderTicketmaster: true,
			ProviderEventbrite:   true,
		},
		territory: cfg.Territory,
		log:       *logging.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	return o
}

// WithProviders restricts the run to the named providers. Unknown names
// are ignored here and validated by the CLI layer.
func WithProviders(names ...string) Option {
	return func(o *options) {
		selected := make(map[string]bool, len(names))
		for _, n := range names {
			if canonical, ok := providerAliases[strings.ToLower(strings.TrimSpace(n))]; ok {
				selected[canonical] = true
			}
		}
		o.providers = selected
	}
}

// KnownProvider reports whether name (or an alias) is a provider this
// pipeline can sweep.
func KnownProvider(name string) bool {
	_, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// WithTerritory overrides the configured sweep territory.
func WithTerritory(t config.Territory) Option {
	return func(o *options) { o.territory = t }
}

// WithDryRun routes all writes to an in-memory store, leaving the
// database untouched while exercising the full fetch and merge path.
func WithDryRun() Option {
	return func(o *options) { o.dryRun = true }
}

// WithGeocoding enables reverse-geocoded address backfill on inserts.
func WithGeocoding() Option {
	return func(o *options) { o.geocode = true }
}

// WithMetrics shares a metrics registry across runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the run's base logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}
