package biophys

import (
	"fmt"
	"sort"
)

// ParameterMap maps a model parameter name to its non-negative value.
type ParameterMap map[string]float64

// Clone returns an independent copy. A nil map clones to an empty map.
func (p ParameterMap) Clone() ParameterMap {
	out := make(ParameterMap, len(p))
	for name, value := range p {
		out[name] = value
	}
	return out
}

// Names returns the parameter names in sorted order.
func (p ParameterMap) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p ParameterMap) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Equal reports whether both maps hold the same names with identical values.
func (p ParameterMap) Equal(other ParameterMap) bool {
	if len(p) != len(other) {
		return false
	}
	for name, value := range p {
		v, ok := other[name]
		if !ok || v != value {
			return false
		}
	}
	return true
}

// Bounds is a closed sampling interval for random starts.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (b Bounds) Validate() error {
	if b.Lower > b.Upper {
		return fmt.Errorf("lower bound %g exceeds upper bound %g", b.Lower, b.Upper)
	}
	return nil
}

// requireParams checks that params holds exactly the expected names with
// non-negative values.
func requireParams(model string, params ParameterMap, expected ...string) error {
	for _, name := range expected {
		value, ok := params[name]
		if !ok {
			return fmt.Errorf("%s: missing parameter %q", model, name)
		}
		if value < 0 {
			return fmt.Errorf("%s: parameter %q must be >= 0, got %g", model, name, value)
		}
	}
	if len(params) != len(expected) {
		for _, name := range params.Names() {
			known := false
			for _, e := range expected {
				if e == name {
					known = true
					break
				}
			}
			if !known {
				return fmt.Errorf("%s: unknown parameter %q", model, name)
			}
		}
	}
	return nil
}
