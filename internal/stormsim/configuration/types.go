package configuration

import (
	"time"

	"github.com/canopyrisk/stormsim/internal/stormsim/geoagg"
)

type StormSimConfiguration struct {
	// Core simulation settings
	Simulation SimulationConfig
	// Aggregation ceilings applied while sampling exposures
	Ceilings geoagg.Ceilings
	// Paths to the data assets loaded at startup
	Assets AssetsConfig
	// Property sample provider configuration
	Sample SampleConfig
	// Output sink configuration
	Outputs OutputConfig
	// Pulsar connection, for the trigger and worker binaries
	Pulsar PulsarConfig
	// Port the trigger HTTP server listens on
	HttpPort int
	// Port the prometheus metrics server listens on; 0 disables it
	MetricsPort int
}

type SimulationConfig struct {
	// Number of trials to run
	NumSimulations int
	// Number of parallel trial workers; 0 or 1 selects serial mode
	Parallelism int
	// Type of storm being simulated; names output files and tables
	StormType string
	// Two-letter state codes to simulate; empty selects every state in the
	// region universe
	States []string
	// Output schema version, 1 (flat rows) or 2 (geo-type rows)
	SchemaVersion int
	// Seed for the random sources; 0 seeds from the clock
	Seed int64
	// Optional label attached to all trials of a run
	Label string
	// Bounds for the per-state property sample size, drawn uniformly
	SampleSizeMin int
	SampleSizeMax int
	// Bounds for the number of storm events per trial, drawn uniformly
	EventCountMin int
	EventCountMax int
	// Fixed payout per property struck by an event
	EventPayout float64
	// Number of times a failing trial is attempted before giving up
	MaxRetries int
}

type AssetsConfig struct {
	// Region universe asset (yaml)
	Regions string
	// Zip to premium rate table (json)
	Premiums string
	// Storm severity/state/size assumption matrices (json)
	Assumptions string
}

type SampleConfig struct {
	// Provider selects where property samples come from: "postgres" or
	// "synthetic"
	Provider string
	// Warehouse table holding property samples, for the postgres provider
	Table    string
	Postgres PostgresConfig
}

type PostgresConfig struct {
	MaxOpenConns int
	Connection   map[string]string
}

type OutputConfig struct {
	CSV     CSVConfig
	Table   TableConfig
	Webhook WebhookConfig
	// Capacity of the shared output queue in concurrent mode
	QueueSize int
	// Buffer thresholds for the per-trial output stream
	PerOutputMaxRows   int
	TotalBufferMaxRows int
}

type CSVConfig struct {
	Enabled bool
	// Directory output files are written to
	OutputDir string
	// When false, an existing output file is a fatal startup error
	Overwrite bool
}

type TableConfig struct {
	Enabled bool
	// Schema the output tables live in
	Dataset string
	// Rows batched together before an insert is issued
	BatchSize int
	// Insert attempts before a batch is failed
	MaxAttempts int
	// Backoff bounds between insert attempts
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	Postgres          PostgresConfig
}

type WebhookConfig struct {
	Enabled bool
	Url     string
}

type PulsarConfig struct {
	URL string
	// Topic simulation trigger events are published to and consumed from
	Topic            string
	SubscriptionName string
	// How long the consumer waits for a message before retrying
	ReceiveTimeout time.Duration
	// How long the consumer backs off after a receive error
	BackoffTime time.Duration
}
