package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/geoagg"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
	"github.com/canopyrisk/stormsim/internal/stormsim/trigger"
)

const testRegions = `
national:
  minLon: -100.0
  minLat: 30.0
  maxLon: -80.0
  maxLat: 45.0
states:
  - code: AR
    bbox: {minLon: -94.6, minLat: 33.0, maxLon: -89.6, maxLat: 36.5}
    counties: [Craighead]
    zips: ["72401"]
  - code: TN
    bbox: {minLon: -90.3, minLat: 35.0, maxLon: -81.6, maxLat: 36.7}
    counties: [Shelby]
    zips: ["38103"]
`

const testAssumptions = `{
	"severity": {"low": 1},
	"states": {"low": {"AR": 1}},
	"sizes": {"low": {"5": 1}}
}`

func testConfig(t *testing.T) configuration.StormSimConfiguration {
	dir := t.TempDir()
	assets := configuration.AssetsConfig{
		Regions:     filepath.Join(dir, "regions.yaml"),
		Premiums:    filepath.Join(dir, "premiums.json"),
		Assumptions: filepath.Join(dir, "assumptions.json"),
	}
	require.NoError(t, os.WriteFile(assets.Regions, []byte(testRegions), 0o644))
	require.NoError(t, os.WriteFile(assets.Premiums, []byte(`{"72401": 1250}`), 0o644))
	require.NoError(t, os.WriteFile(assets.Assumptions, []byte(testAssumptions), 0o644))

	return configuration.StormSimConfiguration{
		Simulation: configuration.SimulationConfig{
			NumSimulations: 1,
			StormType:      "hail",
			SchemaVersion:  model.GeoTypeRowSchemaVersion,
			Seed:           1,
			SampleSizeMin:  5,
			SampleSizeMax:  10,
			EventCountMin:  0,
			EventCountMax:  0,
		},
		Ceilings: geoagg.DefaultCeilings(),
		Assets:   assets,
		Sample:   configuration.SampleConfig{Provider: "synthetic"},
		Outputs: configuration.OutputConfig{
			CSV: configuration.CSVConfig{Enabled: true, OutputDir: t.TempDir(), Overwrite: true},
		},
	}
}

func eventPayload(t *testing.T, event trigger.Event) []byte {
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestHandleRunsOneTrial(t *testing.T) {
	config := testConfig(t)
	w, err := New(config)
	require.NoError(t, err)

	w.handle(context.Background(), eventPayload(t, trigger.Event{
		StormType:    "hail",
		SimID:        0,
		RunTimestamp: 1700000000,
	}))

	_, err = os.Stat(filepath.Join(config.Outputs.CSV.OutputDir, "hail_exposures.csv"))
	assert.NoError(t, err)
}

func TestHandleRestrictsToRequestedStates(t *testing.T) {
	config := testConfig(t)
	w, err := New(config)
	require.NoError(t, err)

	w.handle(context.Background(), eventPayload(t, trigger.Event{
		StormType:    "hail",
		SimID:        0,
		RunTimestamp: 1700000000,
		States:       []string{"TN"},
	}))

	_, err = os.Stat(filepath.Join(config.Outputs.CSV.OutputDir, "hail_exposures.csv"))
	assert.NoError(t, err)
}

func TestHandleIgnoresMalformedPayloads(t *testing.T) {
	config := testConfig(t)
	w, err := New(config)
	require.NoError(t, err)

	w.handle(context.Background(), []byte(`{broken`))

	_, err = os.Stat(filepath.Join(config.Outputs.CSV.OutputDir, "hail_exposures.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleIgnoresUnsupportedStormTypes(t *testing.T) {
	config := testConfig(t)
	w, err := New(config)
	require.NoError(t, err)

	w.handle(context.Background(), eventPayload(t, trigger.Event{StormType: "earthquake", SimID: 0}))

	_, err = os.Stat(filepath.Join(config.Outputs.CSV.OutputDir, "earthquake_exposures.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleIgnoresEventsWithNoKnownStates(t *testing.T) {
	config := testConfig(t)
	w, err := New(config)
	require.NoError(t, err)

	w.handle(context.Background(), eventPayload(t, trigger.Event{
		StormType: "hail",
		States:    []string{"XX"},
	}))

	_, err = os.Stat(filepath.Join(config.Outputs.CSV.OutputDir, "hail_exposures.csv"))
	assert.True(t, os.IsNotExist(err))
}
