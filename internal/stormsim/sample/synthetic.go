package sample

import (
	"context"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
)

const (
	syntheticMinLimit = 50000
	syntheticMaxLimit = 500000
)

// SyntheticProvider generates properties on the fly, uniformly across a
// state's counties, zips and bounding box. It backs local runs and tests
// where no property warehouse is available.
type SyntheticProvider struct {
	universe *regions.Universe

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSyntheticProvider(universe *regions.Universe, seed int64) *SyntheticProvider {
	return &SyntheticProvider{
		universe: universe,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

func (p *SyntheticProvider) Sample(_ context.Context, state string, n int) ([]PropertySample, error) {
	region := p.universe.State(state)
	if region == nil {
		return nil, errors.Errorf("state %s is outside the simulated universe", state)
	}
	if len(region.Counties) == 0 || len(region.Zips) == 0 {
		return nil, errors.Errorf("state %s has no counties or zips configured", state)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	samples := make([]PropertySample, n)
	for i := 0; i < n; i++ {
		samples[i] = PropertySample{
			State:    state,
			County:   region.Counties[p.rnd.Intn(len(region.Counties))],
			Zip:      region.Zips[p.rnd.Intn(len(region.Zips))],
			Limit:    float64(syntheticMinLimit + p.rnd.Intn(syntheticMaxLimit-syntheticMinLimit)),
			Location: region.BBox.RandomPoint(p.rnd),
		}
	}
	return samples, nil
}
