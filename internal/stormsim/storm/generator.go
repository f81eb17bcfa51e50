// Package storm generates synthetic storm events from data-driven
// assumptions about severity, location and size.
package storm

import (
	"math/rand"
	"sort"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/geo"
	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
)

// Event is one synthetic storm: a severity class and a circular footprint
// centered somewhere in the struck state.
type Event struct {
	Severity  string
	State     string
	Footprint geo.Circle
}

// Generator draws storm events. Safe for use from concurrent trials.
type Generator struct {
	assumptions *Assumptions
	universe    *regions.Universe

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(assumptions *Assumptions, universe *regions.Universe, seed int64) *Generator {
	return &Generator{
		assumptions: assumptions,
		universe:    universe,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

// Event draws one storm. It returns false when the drawn center falls outside
// the national bounding box or in a state outside the simulated universe;
// such degenerate footprints are discarded by the caller.
func (g *Generator) Event() (Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	severity := weightedChoice(g.rnd, g.assumptions.SeverityWeights)
	state := weightedChoice(g.rnd, g.assumptions.StateWeights[severity])
	size := weightedChoice(g.rnd, g.assumptions.SizeWeights[severity])
	radius, _ := strconv.ParseFloat(size, 64)

	region := g.universe.State(state)
	if region == nil {
		return Event{}, false
	}

	center := region.BBox.RandomPoint(g.rnd)
	if !g.universe.National.Contains(center) {
		return Event{}, false
	}

	return Event{
		Severity:  severity,
		State:     state,
		Footprint: geo.Circle{Center: center, RadiusMiles: radius},
	}, true
}

// Events draws exactly n valid storms, discarding degenerate footprints and
// redrawing until the target count is met.
func (g *Generator) Events(n int) []Event {
	events := make([]Event, 0, n)
	discarded := 0
	for len(events) < n {
		event, ok := g.Event()
		if !ok {
			discarded++
			continue
		}
		events = append(events, event)
	}
	if discarded > 0 {
		log.Debugf("Discarded %d degenerate storm footprints while generating %d events", discarded, n)
	}
	return events
}

// weightedChoice picks a key from the weight table with probability
// proportional to its weight. Keys are visited in sorted order so draws are
// reproducible for a given seed.
func weightedChoice(rnd *rand.Rand, weights map[string]float64) string {
	keys := make([]string, 0, len(weights))
	total := 0.0
	for k, w := range weights {
		if w > 0 {
			keys = append(keys, k)
			total += w
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}

	target := rnd.Float64() * total
	for _, k := range keys {
		target -= weights[k]
		if target < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}
