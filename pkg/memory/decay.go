package memory

import (
	"context"

	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

// DefaultDecayTiers returns the standard forgetting-curve schedule:
// higher importance tiers decay slower and floor higher. Records
// accessed within the last day are never touched.
func DefaultDecayTiers() []store.DecayTier {
	return []store.DecayTier{
		{MinImportance: 0.9, Factor: 0.99, Floor: 0.5},
		{MinImportance: 0.7, Factor: 0.97, Floor: 0.3},
		{MinImportance: 0.5, Factor: 0.95, Floor: 0.2},
		{MinImportance: 0, Factor: 0.90, Floor: 0.1},
	}
}

// ApplyDecay attenuates the decay score of every memory idle for more
// than a day, per the configured tiers. The sweep is idempotent within
// a day for untouched records in the sense that it only ever lowers
// scores toward each tier's floor; it never raises one. Returns the
// number of affected records.
func (e *Engine) ApplyDecay(ctx context.Context) (int64, error) {
	affected, err := e.store.ApplyDecay(ctx, e.config.DecayTiers)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		log.DebugContext(ctx, "Applied memory decay", "records", affected)
	}
	return affected, nil
}
