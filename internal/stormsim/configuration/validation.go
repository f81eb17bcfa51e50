package configuration

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/model"
)

// Validate checks the configuration for violated prerequisites. Violations
// are fatal and reported before any simulation work starts.
func Validate(config *StormSimConfiguration) error {
	sim := config.Simulation
	if sim.NumSimulations <= 0 {
		return errors.Errorf("simulation.numSimulations must be greater than 0, got %d", sim.NumSimulations)
	}
	if sim.Parallelism < 0 {
		return errors.Errorf("simulation.parallelism must not be negative, got %d", sim.Parallelism)
	}
	if sim.SchemaVersion != model.FlatRowSchemaVersion && sim.SchemaVersion != model.GeoTypeRowSchemaVersion {
		return errors.Errorf("simulation.schemaVersion must be %d or %d, got %d",
			model.FlatRowSchemaVersion, model.GeoTypeRowSchemaVersion, sim.SchemaVersion)
	}
	if sim.StormType == "" {
		return errors.New("simulation.stormType must be set")
	}
	if sim.SampleSizeMin <= 0 || sim.SampleSizeMax < sim.SampleSizeMin {
		return errors.Errorf("invalid sample size bounds [%d, %d]", sim.SampleSizeMin, sim.SampleSizeMax)
	}
	if sim.EventCountMin < 0 || sim.EventCountMax < sim.EventCountMin {
		return errors.Errorf("invalid event count bounds [%d, %d]", sim.EventCountMin, sim.EventCountMax)
	}

	if config.Assets.Regions == "" {
		return errors.New("assets.regions must point at the region universe asset")
	}

	switch config.Sample.Provider {
	case "synthetic":
	case "postgres":
		if len(config.Sample.Postgres.Connection) == 0 {
			return errors.New("sample.postgres.connection is required for the postgres sample provider")
		}
	default:
		return errors.Errorf("unknown sample provider %q", config.Sample.Provider)
	}

	if config.Outputs.Table.Enabled && len(config.Outputs.Table.Postgres.Connection) == 0 {
		return errors.New("outputs.table.postgres.connection is required when the table output is enabled")
	}
	if config.Outputs.CSV.Enabled && config.Outputs.CSV.OutputDir == "" {
		return errors.New("outputs.csv.outputDir is required when the csv output is enabled")
	}
	if config.Outputs.Webhook.Enabled && config.Outputs.Webhook.Url == "" {
		return errors.New("outputs.webhook.url is required when the webhook output is enabled")
	}
	if !config.Outputs.CSV.Enabled && !config.Outputs.Table.Enabled && !config.Outputs.Webhook.Enabled {
		log.Warn("No output sinks are enabled. Simulations will run but nothing will be written")
	}
	return nil
}
