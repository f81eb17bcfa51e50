package storm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyrisk/stormsim/internal/stormsim/geo"
	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
)

func testUniverse(t *testing.T) *regions.Universe {
	u, err := regions.NewUniverse(geo.BBox{MinLon: -100, MinLat: 30, MaxLon: -80, MaxLat: 45}, []regions.State{
		{
			Code:     "AR",
			Counties: []string{"Craighead"},
			Zips:     []string{"72401"},
			BBox:     geo.BBox{MinLon: -94.6, MinLat: 33.0, MaxLon: -89.6, MaxLat: 36.5},
		},
	})
	require.NoError(t, err)
	return u
}

func singleOutcomeAssumptions(state string) *Assumptions {
	return &Assumptions{
		SeverityWeights: map[string]float64{"severe": 1},
		StateWeights:    map[string]map[string]float64{"severe": {state: 1}},
		SizeWeights:     map[string]map[string]float64{"severe": {"25": 1}},
	}
}

func TestEventDrawsFromAssumptions(t *testing.T) {
	g := NewGenerator(singleOutcomeAssumptions("AR"), testUniverse(t), 1)

	event, ok := g.Event()
	require.True(t, ok)
	assert.Equal(t, "severe", event.Severity)
	assert.Equal(t, "AR", event.State)
	assert.Equal(t, 25.0, event.Footprint.RadiusMiles)
	assert.True(t, testUniverse(t).State("AR").BBox.Contains(event.Footprint.Center))
}

func TestEventDiscardsStatesOutsideUniverse(t *testing.T) {
	g := NewGenerator(singleOutcomeAssumptions("XX"), testUniverse(t), 1)

	_, ok := g.Event()
	assert.False(t, ok)
}

func TestEventsReturnsExactlyN(t *testing.T) {
	g := NewGenerator(singleOutcomeAssumptions("AR"), testUniverse(t), 1)

	assert.Len(t, g.Events(10), 10)
	assert.Empty(t, g.Events(0))
}

func TestWeightedChoice(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	assert.Equal(t, "only", weightedChoice(rnd, map[string]float64{"only": 3.5}))
	assert.Equal(t, "", weightedChoice(rnd, map[string]float64{}))

	// zero-weight keys are never drawn
	for i := 0; i < 100; i++ {
		choice := weightedChoice(rnd, map[string]float64{"a": 1, "b": 0})
		assert.Equal(t, "a", choice)
	}
}

func TestWeightedChoiceRoughlyProportional(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[weightedChoice(rnd, map[string]float64{"a": 3, "b": 1})]++
	}
	assert.InDelta(t, 7500, counts["a"], 300)
}
