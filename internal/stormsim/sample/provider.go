// Package sample supplies the insurable properties a trial draws its
// exposures from.
package sample

import (
	"context"

	"github.com/canopyrisk/stormsim/internal/stormsim/geo"
)

// PropertySample is one sampled insurable property. Samples are ephemeral:
// drawn once per trial and discarded with it.
type PropertySample struct {
	State    string
	County   string
	Zip      string
	Limit    float64
	Location geo.Point
}

// Provider draws a random sample of properties for a state. Implementations
// must be safe for use from concurrent trials.
type Provider interface {
	Sample(ctx context.Context, state string, n int) ([]PropertySample, error)
}
