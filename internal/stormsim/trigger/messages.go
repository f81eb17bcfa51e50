// Package trigger accepts simulation requests over HTTP and fans them out as
// one queue message per trial.
package trigger

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	DefaultStormType      = "hail"
	DefaultNumSimulations = 3
	DefaultTopic          = "run-storm-simulation"
)

// Request is the body of a trigger call. Every field is optional; absent
// fields take the defaults below.
//
// The output_bigquery field name is part of the wire contract with existing
// callers and predates the warehouse becoming configurable.
type Request struct {
	StormType      string   `json:"storm_type"`
	NumSimulations int      `json:"num_sims"`
	OutputTable    bool     `json:"output_bigquery"`
	States         []string `json:"states"`
	Topic          string   `json:"topic"`
}

// DefaultRequest returns a Request carrying the default for every field.
// Decode request bodies on top of it so absent fields keep their defaults.
func DefaultRequest() Request {
	return Request{
		StormType:      DefaultStormType,
		NumSimulations: DefaultNumSimulations,
		OutputTable:    true,
		Topic:          DefaultTopic,
	}
}

// ParseRequest decodes a trigger request body, applying defaults for absent
// fields.
func ParseRequest(body []byte) (Request, error) {
	request := DefaultRequest()
	if len(body) == 0 {
		return request, nil
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return Request{}, errors.Wrap(err, "parsing trigger request")
	}
	if request.NumSimulations <= 0 {
		request.NumSimulations = DefaultNumSimulations
	}
	if request.StormType == "" {
		request.StormType = DefaultStormType
	}
	if request.Topic == "" {
		request.Topic = DefaultTopic
	}
	return request, nil
}

// Event is the queue message a worker consumes to run one trial.
type Event struct {
	StormType    string   `json:"storm_type"`
	SimID        int      `json:"sim_id"`
	RunTimestamp int64    `json:"run_timestamp"`
	OutputTable  bool     `json:"output_bigquery"`
	States       []string `json:"state"`
}

// Events expands a request into its per-trial queue messages, all sharing one
// run timestamp.
func (r Request) Events(runTimestamp int64) []Event {
	events := make([]Event, r.NumSimulations)
	for i := range events {
		events[i] = Event{
			StormType:    r.StormType,
			SimID:        i,
			RunTimestamp: runTimestamp,
			OutputTable:  r.OutputTable,
			States:       r.States,
		}
	}
	return events
}
