package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairHead/eventourismo-discover/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultSystemOwner, cfg.SystemOwner)
	assert.Equal(t, 80.0, cfg.MatchRadiusMeters)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, "germany", cfg.Territory.Name)
	require.NoError(t, cfg.Territory.BBox.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DISCOVER_PG_DSN", "postgres://discover@localhost:5432/venues")
	t.Setenv("TICKETMASTER_API_KEY", "tm-key")
	t.Setenv("EVENTBRITE_TOKEN", "eb-token")
	t.Setenv("DISCOVER_SYSTEM_OWNER", "staging-bot")
	t.Setenv("DISCOVER_RETRY_MAX_ATTEMPTS", "4")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://discover@localhost:5432/venues", cfg.PostgresDSN)
	assert.Equal(t, "tm-key", cfg.TicketmasterAPIKey)
	assert.Equal(t, "eb-token", cfg.EventbriteToken)
	assert.Equal(t, "staging-bot", cfg.SystemOwner)
	assert.Equal(t, 4, cfg.RetryMaxAttempts)
}

func TestLoadTerritoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "franken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: franken
bbox:
  minLat: 49.2
  minLng: 10.8
  maxLat: 49.7
  maxLng: 11.4
`), 0o644))

	territory, err := config.LoadTerritory(path)
	require.NoError(t, err)
	assert.Equal(t, "franken", territory.Name)
	assert.Equal(t, 49.2, territory.BBox.MinLat)
	assert.Equal(t, 11.4, territory.BBox.MaxLng)
}

func TestLoadTerritoryInvalidBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: broken
bbox: {minLat: 50, minLng: 11, maxLat: 49, maxLng: 12}
`), 0o644))

	_, err := config.LoadTerritory(path)
	require.Error(t, err)
}

func TestLoadTerritoryMissingFile(t *testing.T) {
	_, err := config.LoadTerritory("/nonexistent/territory.yaml")
	require.Error(t, err)
}
