package scoring

import (
	"fmt"
	"sort"

	"github.com/MikeSquared-Agency/Pulse/internal/domain"
)

const (
	MinWeight = 0
	MaxWeight = 100

	// NeutralWeight stands in for a factor missing from a weight map.
	NeutralWeight = 50
)

// WeightMap holds a user's importance weight per factor id, each in [0,100].
type WeightMap map[string]int

// DefaultWeights returns the registry defaults for every factor.
func DefaultWeights() WeightMap {
	w := make(WeightMap, len(registry))
	for _, f := range registry {
		w[f.ID] = f.DefaultWeight
	}
	return w
}

// Validate rejects unknown factor ids and out-of-range values.
func (w WeightMap) Validate() error {
	for _, id := range w.keys() {
		if _, ok := LookupFactor(id); !ok {
			return fmt.Errorf("%w: unknown factor %q", domain.ErrInvalidWeights, id)
		}
		if v := w[id]; v < MinWeight || v > MaxWeight {
			return fmt.Errorf("%w: %s=%d outside [%d,%d]", domain.ErrInvalidWeights, id, v, MinWeight, MaxWeight)
		}
	}
	return nil
}

// Merge overlays the known, in-range entries of overrides onto a copy of w.
func (w WeightMap) Merge(overrides map[string]int) WeightMap {
	out := w.Clone()
	for id, v := range overrides {
		if _, ok := LookupFactor(id); !ok {
			continue
		}
		if v < MinWeight || v > MaxWeight {
			continue
		}
		out[id] = v
	}
	return out
}

func (w WeightMap) Clone() WeightMap {
	out := make(WeightMap, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Get returns the weight for id, or NeutralWeight when absent.
func (w WeightMap) Get(id string) int {
	if v, ok := w[id]; ok {
		return v
	}
	return NeutralWeight
}

func (w WeightMap) keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
