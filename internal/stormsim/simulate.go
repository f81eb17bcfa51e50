// Package stormsim wires configuration, data assets, the trial runner and the
// output sinks into complete simulation runs.
package stormsim

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/database"
	"github.com/canopyrisk/stormsim/internal/stormsim/logfunnel"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
	"github.com/canopyrisk/stormsim/internal/stormsim/output"
	"github.com/canopyrisk/stormsim/internal/stormsim/premium"
	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
	"github.com/canopyrisk/stormsim/internal/stormsim/runner"
	"github.com/canopyrisk/stormsim/internal/stormsim/sample"
	"github.com/canopyrisk/stormsim/internal/stormsim/storm"
)

const defaultQueueSize = 100

// Engine holds everything a simulation run needs: the loaded assets, the
// sample provider, the storm generator and the configured trial runner. Build
// one per process and reuse it across runs.
type Engine struct {
	config   configuration.StormSimConfiguration
	universe *regions.Universe
	runner   *runner.Runner
	states   []string
	label    string

	// sample warehouse pool, only set for the postgres provider
	db *pgxpool.Pool
}

// NewEngine validates the configuration, loads the data assets and assembles
// the trial runner.
func NewEngine(config configuration.StormSimConfiguration) (*Engine, error) {
	if err := configuration.Validate(&config); err != nil {
		return nil, err
	}

	seed := config.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	universe, err := regions.Load(config.Assets.Regions)
	if err != nil {
		return nil, err
	}
	rates, err := premium.Load(config.Assets.Premiums)
	if err != nil {
		return nil, err
	}
	assumptions, err := storm.LoadAssumptions(config.Assets.Assumptions)
	if err != nil {
		return nil, err
	}

	states := universe.Restrict(config.Simulation.States)
	if len(states) == 0 {
		return nil, errors.Errorf("none of the requested states %v are in the region universe", config.Simulation.States)
	}

	e := &Engine{
		config:   config,
		universe: universe,
		states:   states,
		label:    config.Simulation.Label,
	}
	if e.label == "" {
		e.label = uuid.NewString()
	}

	provider, err := e.buildSampleProvider(seed)
	if err != nil {
		return nil, err
	}
	generator := storm.NewGenerator(assumptions, universe, seed+1)

	e.runner = runner.New(
		runner.Config{
			Ceilings:           config.Ceilings,
			SampleSizeMin:      config.Simulation.SampleSizeMin,
			SampleSizeMax:      config.Simulation.SampleSizeMax,
			EventCountMin:      config.Simulation.EventCountMin,
			EventCountMax:      config.Simulation.EventCountMax,
			Payout:             config.Simulation.EventPayout,
			MaxRetries:         config.Simulation.MaxRetries,
			PerOutputMaxRows:   config.Outputs.PerOutputMaxRows,
			TotalBufferMaxRows: config.Outputs.TotalBufferMaxRows,
		},
		universe, provider, generator, rates, seed+2,
	)
	return e, nil
}

func (e *Engine) buildSampleProvider(seed int64) (sample.Provider, error) {
	switch strings.ToLower(e.config.Sample.Provider) {
	case "", "synthetic":
		return sample.NewSyntheticProvider(e.universe, seed), nil
	case "postgres":
		db, err := database.OpenPgxPool(e.config.Sample.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "opening property sample pool")
		}
		e.db = db
		return sample.NewPostgresProvider(db, e.config.Sample.Table), nil
	default:
		return nil, errors.Errorf("unknown sample provider %q", e.config.Sample.Provider)
	}
}

// Close releases resources held across runs.
func (e *Engine) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

// BuildWriters constructs the configured output sinks. Writers are returned
// uninitialised; the fanout owns LazyInitialize so network clients are built
// in the goroutine that writes.
func (e *Engine) BuildWriters() ([]output.RowWriter, error) {
	return BuildWriters(e.config.Outputs, e.config.Simulation.StormType)
}

// BuildWriters constructs the output sinks enabled in the given output
// configuration.
func BuildWriters(outputs configuration.OutputConfig, stormType string) ([]output.RowWriter, error) {
	var writers []output.RowWriter
	if outputs.CSV.Enabled {
		w, err := output.NewCSVWriter(outputs.CSV.OutputDir, stormType, outputs.CSV.Overwrite)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if outputs.Table.Enabled {
		writers = append(writers, output.NewTableWriter(outputs.Table, stormType))
	}
	if outputs.Webhook.Enabled {
		writers = append(writers, output.NewWebhookWriter(outputs.Webhook.Url))
	}
	if len(writers) == 0 {
		log.Warn("No output sinks enabled, simulation results will be discarded")
	}
	return writers, nil
}

// RestrictStates returns the subset of the requested state codes present in
// the region universe.
func (e *Engine) RestrictStates(codes []string) []string {
	return e.universe.Restrict(codes)
}

// TrialContext builds the immutable identity of one trial of this run.
func (e *Engine) TrialContext(simID int, runTimestamp int64) model.TrialContext {
	schemaVersion := e.config.Simulation.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = model.DefaultSchemaVersion
	}
	return model.TrialContext{
		SimID:         simID,
		RunTimestamp:  runTimestamp,
		Label:         e.label,
		States:        e.states,
		SchemaVersion: schemaVersion,
	}
}

// RunTrial executes a single trial against an already-built fanout. The
// worker binary uses this to run one trial per queue message.
func (e *Engine) RunTrial(ctx context.Context, trial model.TrialContext, outputs output.Fanout, logger *log.Entry) error {
	return e.runner.Run(ctx, trial, outputs, logger)
}

// Run executes the configured number of trials. Parallelism of at most one
// selects serial mode; anything higher fans trials out over worker goroutines
// feeding a shared output consumer.
func (e *Engine) Run(ctx context.Context) error {
	if e.config.Simulation.Parallelism > 1 {
		return e.runConcurrent(ctx)
	}
	return e.runSerial(ctx)
}

// runSerial runs every trial on the calling goroutine with synchronous
// writes. A trial that exhausts its retries is recorded and skipped; it never
// aborts the run.
func (e *Engine) runSerial(ctx context.Context) error {
	writers, err := e.BuildWriters()
	if err != nil {
		return err
	}
	fanout, err := output.NewSerialFanout(writers)
	if err != nil {
		return err
	}

	runTimestamp := time.Now().Unix()
	numSimulations := e.config.Simulation.NumSimulations
	log.Infof("Running %d simulations serially, label %s", numSimulations, e.label)

	var failed int
	for simID := 0; simID < numSimulations; simID++ {
		if err := ctx.Err(); err != nil {
			return multierror.Append(err, fanout.Close()).ErrorOrNil()
		}
		logger := log.WithField("sim_id", simID)
		if err := e.RunTrial(ctx, e.TrialContext(simID, runTimestamp), fanout, logger); err != nil {
			logger.WithError(err).Error("Trial failed permanently")
			failed++
		}
	}

	var result *multierror.Error
	if err := fanout.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if failed > 0 {
		result = multierror.Append(result, errors.Errorf("%d of %d trials failed", failed, numSimulations))
	}
	return result.ErrorOrNil()
}

// runConcurrent fans trials out over a bounded pool of worker goroutines. All
// workers share one output fanout and one log funnel; shutdown is strictly
// ordered so no queue is closed while producers can still send.
func (e *Engine) runConcurrent(ctx context.Context) error {
	writers, err := e.BuildWriters()
	if err != nil {
		return err
	}

	queueSize := e.config.Outputs.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	fanout := output.NewConcurrentFanout(writers, queueSize)
	go fanout.Run()

	funnel := logfunnel.New(log.StandardLogger(), queueSize)
	go funnel.Run()

	runTimestamp := time.Now().Unix()
	numSimulations := e.config.Simulation.NumSimulations
	parallelism := e.config.Simulation.Parallelism
	log.Infof("Running %d simulations with parallelism %d, label %s", numSimulations, parallelism, e.label)

	var (
		mu     sync.Mutex
		failed int
	)
	g := &errgroup.Group{}
	g.SetLimit(parallelism)
	for simID := 0; simID < numSimulations; simID++ {
		if ctx.Err() != nil {
			break
		}
		simID := simID
		g.Go(func() error {
			logger := funnel.WorkerLogger(simID)
			if err := e.RunTrial(ctx, e.TrialContext(simID, runTimestamp), fanout, logger); err != nil {
				logger.WithError(err).Error("Trial failed permanently")
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Workers are done: drain the output queue, then the log queue.
	fanout.Stop()
	outputErr := fanout.Join()
	funnel.Stop()
	funnel.Join()

	var result *multierror.Error
	if err := ctx.Err(); err != nil {
		result = multierror.Append(result, err)
	}
	if outputErr != nil {
		result = multierror.Append(result, outputErr)
	}
	if failed > 0 {
		result = multierror.Append(result, errors.Errorf("%d of %d trials failed", failed, numSimulations))
	}
	return result.ErrorOrNil()
}
