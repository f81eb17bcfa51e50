// Package premium provides the zip code to annual premium rate lookup.
package premium

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// MinimumPremium is the floor applied to every rate lookup, in currency units.
const MinimumPremium = 100.0

// RateTable maps zip codes to annual premiums.
type RateTable map[string]float64

// Load reads a rate table from a JSON asset of the form {"72401": 1250, ...}.
func Load(path string) (RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading premium asset %s", path)
	}
	var rates RateTable
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, errors.Wrapf(err, "parsing premium asset %s", path)
	}
	return rates, nil
}

// Rate returns the premium for the given zip, floored at MinimumPremium.
// Unknown zips rate at the floor.
func (t RateTable) Rate(zip string) float64 {
	if rate, ok := t[zip]; ok && rate > MinimumPremium {
		return rate
	}
	return MinimumPremium
}
