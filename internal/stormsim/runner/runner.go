// Package runner executes single simulation trials: sample properties,
// aggregate exposure and premium under ceilings, overlay synthetic storms,
// tally losses and emit the result rows.
package runner

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim/geoagg"
	"github.com/canopyrisk/stormsim/internal/stormsim/metrics"
	"github.com/canopyrisk/stormsim/internal/stormsim/model"
	"github.com/canopyrisk/stormsim/internal/stormsim/output"
	"github.com/canopyrisk/stormsim/internal/stormsim/premium"
	"github.com/canopyrisk/stormsim/internal/stormsim/regions"
	"github.com/canopyrisk/stormsim/internal/stormsim/sample"
	"github.com/canopyrisk/stormsim/internal/stormsim/storm"
)

const (
	DefaultMaxRetries = 3
	DefaultPayout     = 10000.0
)

// trialState tracks the phase a trial is in. Transitions are strictly
// ordered; no phase may be skipped.
type trialState string

const (
	stateSampling        trialState = "Sampling"
	stateEventGeneration trialState = "EventGeneration"
	stateImpactTallying  trialState = "ImpactTallying"
	stateEmitting        trialState = "Emitting"
	stateDone            trialState = "Done"
)

// Config carries the per-run constants a trial needs.
type Config struct {
	Ceilings           geoagg.Ceilings
	SampleSizeMin      int
	SampleSizeMax      int
	EventCountMin      int
	EventCountMax      int
	Payout             float64
	MaxRetries         int
	PerOutputMaxRows   int
	TotalBufferMaxRows int
}

// Runner executes trials. One Runner is shared by all trial workers of a
// run; per-trial state lives in the trialRun created for each execution.
type Runner struct {
	config   Config
	universe *regions.Universe
	samples  sample.Provider
	storms   *storm.Generator
	rates    premium.RateTable

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(
	config Config,
	universe *regions.Universe,
	samples sample.Provider,
	storms *storm.Generator,
	rates premium.RateTable,
	seed int64,
) *Runner {
	if config.Payout == 0 {
		config.Payout = DefaultPayout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	return &Runner{
		config:   config,
		universe: universe,
		samples:  samples,
		storms:   storms,
		rates:    rates,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// Run executes one trial, retrying the whole trial with backed-off attempts
// if any step fails. An exhausted trial surfaces its last error to the
// caller; sibling trials are unaffected.
func (r *Runner) Run(ctx context.Context, trial model.TrialContext, outputs output.Fanout, logger *logrus.Entry) error {
	err := retry.Do(
		func() error {
			return r.runOnce(ctx, trial, outputs, logger)
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.config.MaxRetries)),
		retry.Delay(time.Second),
		retry.MaxJitter(time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.WithError(err).Warnf("Trial %d failed, retrying (attempt %d of %d)",
				trial.SimID, attempt+1, r.config.MaxRetries)
		}),
	)
	if err != nil {
		metrics.RecordTrialFailed()
		return errors.Wrapf(err, "trial %d", trial.SimID)
	}
	metrics.RecordTrialCompleted()
	return nil
}

// trialRun is the exclusively-owned state of one trial execution.
type trialRun struct {
	runner *Runner
	trial  model.TrialContext
	logger *logrus.Entry
	state  trialState

	exposures *geoagg.Aggregate
	premiums  *geoagg.Aggregate
	losses    *geoagg.Aggregate
	sampled   []sample.PropertySample
	events    []storm.Event
}

func (r *Runner) runOnce(ctx context.Context, trial model.TrialContext, outputs output.Fanout, logger *logrus.Entry) error {
	t := &trialRun{
		runner:    r,
		trial:     trial,
		logger:    logger,
		state:     stateSampling,
		exposures: geoagg.New(r.universe, r.config.Ceilings),
		premiums:  geoagg.New(r.universe, r.config.Ceilings),
		losses:    geoagg.New(r.universe, r.config.Ceilings),
	}

	logger.Debugf("Starting trial %d on %v", trial.SimID, trial.States)

	if err := t.sampleExposures(ctx); err != nil {
		return err
	}
	if err := t.transition(stateSampling, stateEventGeneration); err != nil {
		return err
	}

	logger.Info("Writing exposures and premiums")
	if err := t.emitExposuresAndPremiums(outputs); err != nil {
		return err
	}

	t.generateEvents()
	if err := t.transition(stateEventGeneration, stateImpactTallying); err != nil {
		return err
	}

	logger.Info("Calculating storm impact")
	t.tallyImpact()
	if err := t.transition(stateImpactTallying, stateEmitting); err != nil {
		return err
	}

	logger.Info("Writing losses and nlr")
	if err := t.emitLossesAndNLR(outputs); err != nil {
		return err
	}
	if err := t.transition(stateEmitting, stateDone); err != nil {
		return err
	}

	logger.Debugf("Trial %d complete", trial.SimID)
	return nil
}

func (t *trialRun) transition(from, to trialState) error {
	if t.state != from {
		return errors.Errorf("illegal trial state transition %s -> %s while in %s", from, to, t.state)
	}
	t.state = to
	return nil
}

// sampleExposures draws property batches state by state, aggregating exposure
// and premium until a ceiling trips. The state order is shuffled every trial
// so no region systematically fills the ceilings first.
func (t *trialRun) sampleExposures(ctx context.Context) error {
	r := t.runner

	states := make([]string, len(t.trial.States))
	copy(states, t.trial.States)
	r.shuffle(states)

	for _, state := range states {
		batchSize := r.intBetween(r.config.SampleSizeMin, r.config.SampleSizeMax)
		t.logger.Debugf("Randomly choosing %d properties in %s", batchSize, state)

		properties, err := r.samples.Sample(ctx, state, batchSize)
		if err != nil {
			return errors.Wrapf(err, "sampling properties in %s", state)
		}

		for _, property := range properties {
			if !t.exposures.Add(property.State, property.County, property.Zip, property.Limit) {
				t.logger.Debugf("Reached exposure ceiling, stopping after %d properties", len(t.sampled))
				break
			}
			rate := r.rates.Rate(property.Zip)
			t.premiums.AddUnchecked(property.State, property.County, property.Zip, rate)
			t.sampled = append(t.sampled, property)
		}

		if t.exposures.TotalCeilingReached() {
			t.logger.Debug("Reached total exposure ceiling, stopping states")
			break
		}
	}
	return nil
}

func (t *trialRun) generateEvents() {
	r := t.runner
	count := r.intBetween(r.config.EventCountMin, r.config.EventCountMax)
	t.logger.Infof("Generating %d storms", count)
	t.events = r.storms.Events(count)
}

// tallyImpact intersects every event footprint with every sampled property
// location. Each hit pays out the fixed amount at all hierarchy levels.
func (t *trialRun) tallyImpact() {
	payout := t.runner.config.Payout
	for _, event := range t.events {
		for _, property := range t.sampled {
			if event.Footprint.Contains(property.Location) {
				t.losses.AddUnchecked(property.State, property.County, property.Zip, payout)
			}
		}
	}
}

func (r *Runner) shuffle(states []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rnd.Shuffle(len(states), func(i, j int) {
		states[i], states[j] = states[j], states[i]
	})
}

// intBetween draws uniformly from [min, max].
func (r *Runner) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.rnd.Intn(max-min+1)
}
