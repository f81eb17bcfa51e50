// Package regions loads the closed universe of simulated geographies from a
// configuration asset. Aggregates are keyed on this universe so the set of
// output columns is known before any sampling happens.
package regions

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/canopyrisk/stormsim/internal/stormsim/geo"
)

// State is one simulated state together with its counties, zip codes and the
// bounding box used to place storm centers.
type State struct {
	Code     string   `yaml:"code"`
	Counties []string `yaml:"counties"`
	Zips     []string `yaml:"zips"`
	BBox     geo.BBox `yaml:"bbox"`
}

// Universe is the closed enumeration of every geography a simulation can
// touch. The national bounding box bounds all valid storm centers.
type Universe struct {
	National geo.BBox `yaml:"national"`
	States   []State  `yaml:"states"`

	byCode map[string]*State
}

// Load reads and validates a region universe from a YAML asset.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading region asset %s", path)
	}
	u := &Universe{}
	if err := yaml.Unmarshal(data, u); err != nil {
		return nil, errors.Wrapf(err, "parsing region asset %s", path)
	}
	if err := u.index(); err != nil {
		return nil, errors.Wrapf(err, "invalid region asset %s", path)
	}
	return u, nil
}

// NewUniverse builds a universe directly from its parts, validating it the
// same way Load does.
func NewUniverse(national geo.BBox, states []State) (*Universe, error) {
	u := &Universe{National: national, States: states}
	if err := u.index(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Universe) index() error {
	if len(u.States) == 0 {
		return errors.New("no states defined")
	}
	u.byCode = make(map[string]*State, len(u.States))
	for i := range u.States {
		s := &u.States[i]
		if s.Code == "" {
			return errors.Errorf("state at index %d has no code", i)
		}
		if _, exists := u.byCode[s.Code]; exists {
			return errors.Errorf("duplicate state %s", s.Code)
		}
		u.byCode[s.Code] = s
	}
	return nil
}

// StateCodes returns the codes of every state in the universe, in asset order.
func (u *Universe) StateCodes() []string {
	codes := make([]string, len(u.States))
	for i, s := range u.States {
		codes[i] = s.Code
	}
	return codes
}

// State returns the state with the given code, or nil if it is outside the
// universe.
func (u *Universe) State(code string) *State {
	return u.byCode[code]
}

// CountyNames returns every county across all states.
func (u *Universe) CountyNames() []string {
	var counties []string
	for _, s := range u.States {
		counties = append(counties, s.Counties...)
	}
	return counties
}

// ZipCodes returns every zip code across all states.
func (u *Universe) ZipCodes() []string {
	var zips []string
	for _, s := range u.States {
		zips = append(zips, s.Zips...)
	}
	return zips
}

// Restrict returns the subset of the requested codes present in the universe.
// Unknown codes are dropped. An empty request selects every state.
func (u *Universe) Restrict(codes []string) []string {
	if len(codes) == 0 {
		return u.StateCodes()
	}
	var known []string
	for _, code := range codes {
		if _, ok := u.byCode[code]; ok {
			known = append(known, code)
		}
	}
	return known
}
