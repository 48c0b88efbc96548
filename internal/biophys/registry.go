package biophys

import (
	"errors"
	"fmt"
	"sort"

	"evophys/internal/modelid"
)

var ErrUnknownModel = errors.New("unknown model")

// Spec describes a registered model type with its defaults and the bounds
// used for random starts.
type Spec struct {
	Name        string
	Description string
	Constructor Constructor
	Defaults    ParameterMap
	Bounds      map[string]Bounds
}

var registry = map[string]Spec{
	"adair": {
		Name:        "adair",
		Description: "two-site Adair binding curve (K1, K2)",
		Constructor: NewAdair,
		Defaults:    ParameterMap{"K1": 10, "K2": 100},
		Bounds: map[string]Bounds{
			"K1": {Lower: 0, Upper: 200},
			"K2": {Lower: 0, Upper: 200},
		},
	},
	"hill": {
		Name:        "hill",
		Description: "Hill binding curve (Kd, n)",
		Constructor: NewHill,
		Defaults:    ParameterMap{"Kd": 1, "n": 2},
		Bounds: map[string]Bounds{
			"Kd": {Lower: 0, Upper: 100},
			"n":  {Lower: 0, Upper: 4},
		},
	},
}

// Lookup returns a copy of the named model spec. Names are matched after
// alias normalization, so "Adair_Model" resolves to adair.
func Lookup(name string) (Spec, error) {
	spec, ok := registry[modelid.Normalize(name)]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	spec.Defaults = spec.Defaults.Clone()
	bounds := make(map[string]Bounds, len(spec.Bounds))
	for k, v := range spec.Bounds {
		bounds[k] = v
	}
	spec.Bounds = bounds
	return spec, nil
}

// Names lists registered models in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
