package catalog

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// jitterStep spaces successive items along the noise field so neighbours
// are correlated but not identical.
const jitterStep = 0.61803

// Jitter returns a copy of base whose starting costs are scaled by
// 1 ± amplitude, sampled from seeded simplex noise. The same seed always
// yields the same catalog; rates and growth are untouched. The result is
// validated, so an amplitude that zeroes a cost is an error.
func Jitter(base *BuildInfo, seed int64, amplitude float64) (*BuildInfo, error) {
	noise := opensimplex.New(seed)
	items := base.Snapshot()
	for i := range items {
		n := noise.Eval2(float64(i)*jitterStep, 0.5) // [-1, 1]
		items[i].Cost *= 1 + amplitude*n
	}
	out := NewBuildInfo(items, base.growth)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("jitter: %w", err)
	}
	return out, nil
}
