package storm

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Assumptions are the historical storm statistics that drive event
// generation: how likely each severity is, where storms of that severity
// strike, and how large they are. All three matrices are weight tables;
// weights need not sum to 1.
type Assumptions struct {
	// SeverityWeights maps severity name to its relative likelihood.
	SeverityWeights map[string]float64 `json:"severity"`
	// StateWeights maps severity to the relative likelihood of each state.
	StateWeights map[string]map[string]float64 `json:"states"`
	// SizeWeights maps severity to relative likelihoods of footprint radii.
	// Radii are miles, keyed as strings to keep the asset readable.
	SizeWeights map[string]map[string]float64 `json:"sizes"`
}

// LoadAssumptions reads a storm assumption asset from JSON.
func LoadAssumptions(path string) (*Assumptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading storm assumptions %s", path)
	}
	a := &Assumptions{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, errors.Wrapf(err, "parsing storm assumptions %s", path)
	}
	if err := a.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid storm assumptions %s", path)
	}
	return a, nil
}

func (a *Assumptions) validate() error {
	if len(a.SeverityWeights) == 0 {
		return errors.New("no severities defined")
	}
	for severity := range a.SeverityWeights {
		if len(a.StateWeights[severity]) == 0 {
			return errors.Errorf("severity %s has no state weights", severity)
		}
		sizes, ok := a.SizeWeights[severity]
		if !ok || len(sizes) == 0 {
			return errors.Errorf("severity %s has no size weights", severity)
		}
		for size := range sizes {
			if _, err := strconv.ParseFloat(size, 64); err != nil {
				return errors.Errorf("severity %s has non-numeric size %q", severity, size)
			}
		}
	}
	return nil
}
