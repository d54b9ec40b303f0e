// Package config loads runtime configuration from the environment and
// the territory file. A .env file is honored when present so local runs
// do not need exported variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FairHead/eventourismo-discover/internal/geo"
	"github.com/FairHead/eventourismo-discover/pkg/errors"
)

// DefaultSystemOwner is the identity written to created_by on records
// the pipeline creates.
const DefaultSystemOwner = "discover-pipeline"

// germany is the default ingestion territory.
var germany = Territory{
	Name: "germany",
	BBox: geo.BBox{MinLat: 47.27, MinLng: 5.87, MaxLat: 55.06, MaxLng: 15.04},
}

// Config is the resolved runtime configuration.
type Config struct {
	PostgresDSN        string
	TicketmasterAPIKey string
	EventbriteToken    string
	SystemOwner        string

	TerritoryPath     string
	Territory         Territory
	MatchRadiusMeters float64

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	OverpassEndpoint string
	MetricsAddr      string
}

// Territory is the named bounding box the sweep covers.
type Territory struct {
	Name string   `yaml:"name"`
	BBox geo.BBox `yaml:"bbox"`
}

// Load reads configuration from the environment (prefixed DISCOVER_,
// with the provider credentials kept under their conventional names)
// and the optional territory file.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env always wins.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DISCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("system_owner", DefaultSystemOwner)
	v.SetDefault("match_radius_meters", 80.0)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", "500ms")
	v.SetDefault("overpass_endpoint", "")
	v.SetDefault("territory_path", "")
	v.SetDefault("metrics_addr", "")

	// Provider credentials use the names the providers document.
	_ = v.BindEnv("ticketmaster_api_key", "TICKETMASTER_API_KEY")
	_ = v.BindEnv("eventbrite_token", "EVENTBRITE_TOKEN")

	cfg := &Config{
		PostgresDSN:        v.GetString("pg_dsn"),
		TicketmasterAPIKey: v.GetString("ticketmaster_api_key"),
		EventbriteToken:    v.GetString("eventbrite_token"),
		SystemOwner:        v.GetString("system_owner"),
		TerritoryPath:      v.GetString("territory_path"),
		MatchRadiusMeters:  v.GetFloat64("match_radius_meters"),
		RetryMaxAttempts:   v.GetInt("retry_max_attempts"),
		RetryBaseDelay:     v.GetDuration("retry_base_delay"),
		OverpassEndpoint:   v.GetString("overpass_endpoint"),
		MetricsAddr:        v.GetString("metrics_addr"),
	}

	territory, err := LoadTerritory(cfg.TerritoryPath)
	if err != nil {
		return nil, err
	}
	cfg.Territory = territory
	return cfg, nil
}

// LoadTerritory reads the territory file at path, or returns the
// default territory when path is empty.
func LoadTerritory(path string) (Territory, error) {
	if path == "" {
		return germany, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Territory{}, errors.NewConfigError("territory", "read territory file", err)
	}
	var t Territory
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Territory{}, errors.WrapParse("yaml", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(strings.TrimSuffix(path, ".yaml"), ".yml")
	}
	if err := t.BBox.Validate(); err != nil {
		return Territory{}, errors.NewConfigError("territory", "invalid bounding box", err)
	}
	return t, nil
}
