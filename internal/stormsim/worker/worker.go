// Package worker consumes per-trial simulation events from Pulsar and runs
// each one to completion against the configured sinks.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/canopyrisk/stormsim/internal/stormsim"
	"github.com/canopyrisk/stormsim/internal/stormsim/configuration"
	"github.com/canopyrisk/stormsim/internal/stormsim/output"
	"github.com/canopyrisk/stormsim/internal/stormsim/trigger"
)

const (
	defaultReceiveTimeout = 5 * time.Second
	defaultBackoffTime    = time.Second
)

// Worker runs one trial per consumed queue message. Every message is acked
// whether or not its trial succeeds; redelivering a failed trial would not
// make it succeed and a poison message must never wedge the subscription.
type Worker struct {
	config configuration.StormSimConfiguration
	engine *stormsim.Engine
}

func New(config configuration.StormSimConfiguration) (*Worker, error) {
	engine, err := stormsim.NewEngine(config)
	if err != nil {
		return nil, err
	}
	return &Worker{config: config, engine: engine}, nil
}

// Run consumes simulation events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.engine.Close()

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: w.config.Pulsar.URL,
	})
	if err != nil {
		return errors.Wrapf(err, "connecting to pulsar at %s", w.config.Pulsar.URL)
	}
	defer client.Close()

	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            w.config.Pulsar.Topic,
		SubscriptionName: w.config.Pulsar.SubscriptionName,
		Type:             pulsar.Shared,
	})
	if err != nil {
		return errors.Wrapf(err, "subscribing to %s", w.config.Pulsar.Topic)
	}
	defer consumer.Close()

	receiveTimeout := w.config.Pulsar.ReceiveTimeout
	if receiveTimeout <= 0 {
		receiveTimeout = defaultReceiveTimeout
	}
	backoffTime := w.config.Pulsar.BackoffTime
	if backoffTime <= 0 {
		backoffTime = defaultBackoffTime
	}

	log.Infof("Worker consuming from %s as %s", w.config.Pulsar.Topic, w.config.Pulsar.SubscriptionName)
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down simulation worker")
			return nil
		default:
			receiveCtx, cancel := context.WithTimeout(ctx, receiveTimeout)
			msg, err := consumer.Receive(receiveCtx)
			cancel()
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if err != nil {
				log.WithError(err).Warnf("Pulsar receive failed; backing off for %s", backoffTime)
				time.Sleep(backoffTime)
				continue
			}

			w.handle(ctx, msg.Payload())
			consumer.Ack(msg)
		}
	}
}

// handle decodes and runs one simulation event. Failures are logged, never
// returned: the caller acks unconditionally.
func (w *Worker) handle(ctx context.Context, payload []byte) {
	var event trigger.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.WithError(err).Errorf("Ignoring malformed simulation event: %s", payload)
		return
	}
	if event.StormType != w.config.Simulation.StormType {
		log.Warnf("Ignoring simulation event for unsupported storm type %q", event.StormType)
		return
	}

	trial := w.engine.TrialContext(event.SimID, event.RunTimestamp)
	if len(event.States) > 0 {
		states := w.engine.RestrictStates(event.States)
		if len(states) == 0 {
			log.Warnf("Ignoring simulation event %d: no requested state %v is in the region universe",
				event.SimID, event.States)
			return
		}
		trial.States = states
	}

	outputs := w.config.Outputs
	if !event.OutputTable {
		outputs.Table.Enabled = false
	}
	writers, err := stormsim.BuildWriters(outputs, event.StormType)
	if err != nil {
		log.WithError(err).Errorf("Failed building output writers for trial %d", event.SimID)
		return
	}
	fanout, err := output.NewSerialFanout(writers)
	if err != nil {
		log.WithError(err).Errorf("Failed initializing output writers for trial %d", event.SimID)
		return
	}

	logger := log.WithField("sim_id", event.SimID)
	if err := w.engine.RunTrial(ctx, trial, fanout, logger); err != nil {
		logger.WithError(err).Error("Trial failed permanently")
	}
	if err := fanout.Close(); err != nil {
		logger.WithError(err).Error("Failed closing output writers")
	}
}
