package discover

import (
	"time"

	"github.com/FairHead/eventourismo-discover/internal/ingest"
	"github.com/FairHead/eventourismo-discover/internal/sweep"
)

// ProviderResult is one provider pipeline's outcome.
type ProviderResult struct {
	Counters ingest.Counters
	Sweep    sweep.Stats
	Err      error
}

// Summary is the outcome of one full ingestion pass.
type Summary struct {
	Territory  string
	StartedAt  time.Time
	FinishedAt time.Time
	Providers  map[string]ProviderResult
}

// Totals folds all provider counters together.
func (s Summary) Totals() ingest.Counters {
	var total ingest.Counters
	for _, r := range s.Providers {
		total.Add(r.Counters)
	}
	return total
}

// Duration is the wall-clock length of the pass.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
