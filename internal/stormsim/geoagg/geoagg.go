// Package geoagg implements the hierarchical running totals a trial keeps for
// exposure, premium and loss, with approximate ceiling enforcement.
package geoagg

import (
	"math"

	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
)

// Ceilings are the aggregation limits applied while sampling exposures. Once
// a level is within SafetyMargin of its ceiling no further samples are
// accepted, so a trial can overshoot by at most one sample's amount.
type Ceilings struct {
	Total        float64
	State        float64
	County       float64
	Zip          float64
	SafetyMargin float64
}

// DefaultCeilings returns the production aggregation limits.
func DefaultCeilings() Ceilings {
	return Ceilings{
		Total:        200000000,
		State:        80000000,
		County:       30000000,
		Zip:          5000000,
		SafetyMargin: 15000,
	}
}

// Aggregate holds running dollar totals at every level of the geography
// hierarchy. It is owned by exactly one trial and never shared.
type Aggregate struct {
	Total  float64
	State  map[string]float64
	County map[string]float64
	Zip    map[string]float64

	ceilings Ceilings
}

// New returns an Aggregate with a zero bucket for every geography in the
// universe, so the output column set is closed before sampling starts.
func New(universe *regions.Universe, ceilings Ceilings) *Aggregate {
	a := &Aggregate{
		State:    make(map[string]float64),
		County:   make(map[string]float64),
		Zip:      make(map[string]float64),
		ceilings: ceilings,
	}
	for _, code := range universe.StateCodes() {
		a.State[code] = 0
	}
	for _, county := range universe.CountyNames() {
		a.County[county] = 0
	}
	for _, zip := range universe.ZipCodes() {
		a.Zip[zip] = 0
	}
	return a
}

// Add increments all four levels by amount, unless the total or the state
// bucket is already within the safety margin of its ceiling. It returns false
// when the add was refused, signalling the caller to stop sampling the
// current region.
func (a *Aggregate) Add(state, county, zip string, amount float64) bool {
	if a.TotalCeilingReached() || a.State[state] >= a.ceilings.State-a.ceilings.SafetyMargin {
		return false
	}
	a.Total += amount
	a.State[state] += amount
	a.County[county] += amount
	a.Zip[zip] += amount
	return true
}

// AddUnchecked increments all four levels without consulting the ceilings.
// Loss tallying uses this: payouts are not subject to exposure limits.
func (a *Aggregate) AddUnchecked(state, county, zip string, amount float64) {
	a.Total += amount
	a.State[state] += amount
	a.County[county] += amount
	a.Zip[zip] += amount
}

// TotalCeilingReached reports whether the aggregate-wide ceiling has tripped,
// ending all sampling for the trial.
func (a *Aggregate) TotalCeilingReached() bool {
	return a.Total >= a.ceilings.Total-a.ceilings.SafetyMargin
}

// LossRatio is loss divided by premium rounded to 4 decimal places, or 0 when
// there is no premium.
func LossRatio(premium, loss float64) float64 {
	if premium == 0 {
		return 0
	}
	return math.Round(loss/premium*10000) / 10000
}
