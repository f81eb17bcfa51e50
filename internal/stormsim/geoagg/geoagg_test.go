package geoagg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyrisk/stormsim/internal/stormsim/geo"
	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
)

func testUniverse(t *testing.T) *regions.Universe {
	u, err := regions.NewUniverse(geo.BBox{MinLon: -100, MinLat: 30, MaxLon: -80, MaxLat: 45}, []regions.State{
		{Code: "AR", Counties: []string{"Craighead", "Pulaski"}, Zips: []string{"72401", "72201"}},
		{Code: "TN", Counties: []string{"Shelby"}, Zips: []string{"38103"}},
	})
	require.NoError(t, err)
	return u
}

func TestNewZeroFillsEveryGeography(t *testing.T) {
	agg := New(testUniverse(t), DefaultCeilings())

	assert.Equal(t, 0.0, agg.Total)
	assert.Equal(t, map[string]float64{"AR": 0, "TN": 0}, agg.State)
	assert.Equal(t, map[string]float64{"Craighead": 0, "Pulaski": 0, "Shelby": 0}, agg.County)
	assert.Equal(t, map[string]float64{"72401": 0, "72201": 0, "38103": 0}, agg.Zip)
}

func TestAddIncrementsAllLevels(t *testing.T) {
	agg := New(testUniverse(t), DefaultCeilings())

	assert.True(t, agg.Add("AR", "Craighead", "72401", 250000))
	assert.True(t, agg.Add("AR", "Pulaski", "72201", 100000))

	assert.Equal(t, 350000.0, agg.Total)
	assert.Equal(t, 350000.0, agg.State["AR"])
	assert.Equal(t, 250000.0, agg.County["Craighead"])
	assert.Equal(t, 100000.0, agg.Zip["72201"])
	assert.Equal(t, 0.0, agg.State["TN"])
}

func TestAddRefusesWithinSafetyMarginOfStateCeiling(t *testing.T) {
	ceilings := Ceilings{Total: 1000000, State: 500000, County: 500000, Zip: 500000, SafetyMargin: 15000}
	agg := New(testUniverse(t), ceilings)

	assert.True(t, agg.Add("AR", "Craighead", "72401", 484000))
	// 484000 < 500000-15000, one more add is allowed and may overshoot
	assert.True(t, agg.Add("AR", "Craighead", "72401", 300000))
	// now the bucket is past the margin
	assert.False(t, agg.Add("AR", "Pulaski", "72201", 1))
	// other states are unaffected
	assert.True(t, agg.Add("TN", "Shelby", "38103", 1))
}

func TestAddRefusesAtTotalCeiling(t *testing.T) {
	ceilings := Ceilings{Total: 100000, State: 1000000, County: 1000000, Zip: 1000000, SafetyMargin: 15000}
	agg := New(testUniverse(t), ceilings)

	assert.True(t, agg.Add("AR", "Craighead", "72401", 90000))
	assert.True(t, agg.TotalCeilingReached())
	assert.False(t, agg.Add("TN", "Shelby", "38103", 1))
	assert.Equal(t, 90000.0, agg.Total)
}

func TestOvershootIsBoundedByOneAmount(t *testing.T) {
	ceilings := Ceilings{Total: 100000, State: 1000000, County: 1000000, Zip: 1000000, SafetyMargin: 15000}
	agg := New(testUniverse(t), ceilings)

	assert.True(t, agg.Add("AR", "Craighead", "72401", 84000))
	assert.False(t, agg.TotalCeilingReached())
	// still under the margin, so one more add is accepted in full
	assert.True(t, agg.Add("AR", "Craighead", "72401", 50000))
	assert.Equal(t, 134000.0, agg.Total)
	assert.False(t, agg.Add("AR", "Craighead", "72401", 1))
}

func TestAddUncheckedIgnoresCeilings(t *testing.T) {
	ceilings := Ceilings{Total: 100, State: 100, County: 100, Zip: 100, SafetyMargin: 50}
	agg := New(testUniverse(t), ceilings)

	agg.AddUnchecked("AR", "Craighead", "72401", 10000)
	agg.AddUnchecked("AR", "Craighead", "72401", 10000)
	assert.Equal(t, 20000.0, agg.Total)
}

func TestLossRatio(t *testing.T) {
	assert.Equal(t, 0.25, LossRatio(200, 50))
	assert.Equal(t, 0.3333, LossRatio(3, 1))
	assert.Equal(t, 0.0, LossRatio(0, 1000))
	assert.Equal(t, 0.0, LossRatio(100, 0))
}
