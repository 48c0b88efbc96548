package main

import (
	"encoding/json"
	"fmt"
	"os"

	"evophys/internal/biophys"
	api "evophys/pkg/evophys"
)

func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func loadPopulationRequestFromConfig(path string) (api.PopulationRequest, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return api.PopulationRequest{}, err
	}

	var req api.PopulationRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["model"]); ok {
		req.Model = v
	}
	if v, ok := asFloatMap(raw["params"]); ok {
		req.Params = v
	}
	if v, ok := asStringSlice(raw["mutable"]); ok {
		req.Mutable = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.N = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asFloat64(raw["dt"]); ok {
		req.Dt = &v
	}
	if v, ok := asFloat64(raw["selection_strength"]); ok {
		req.SelectionStrength = &v
	}
	if v, ok := asBool(raw["mutate_all"]); ok {
		req.MutateSingle = !v
	}
	if v, ok := asBool(raw["start_random"]); ok {
		req.StartRandom = v
	}
	if v, ok := asFloat64(raw["fitness_goal"]); ok {
		req.FitnessGoal = v
	}
	if v, ok := asUint64(raw["seed"]); ok {
		req.Seed = v
	}
	if boundsRaw, ok := raw["bounds"].(map[string]any); ok {
		bounds, err := asBoundsMap(boundsRaw)
		if err != nil {
			return api.PopulationRequest{}, err
		}
		req.Bounds = bounds
	}
	return req, nil
}

func loadLineageRequestFromConfig(path string) (api.LineageRequest, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return api.LineageRequest{}, err
	}

	var req api.LineageRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["model"]); ok {
		req.Model = v
	}
	if v, ok := asFloatMap(raw["params"]); ok {
		req.Params = v
	}
	if v, ok := asFloat64(raw["population_size"]); ok {
		req.N = v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.Mu = v
	}
	if v, ok := asFloat64(raw["dt"]); ok {
		req.Dt = &v
	}
	if v, ok := asFloat64(raw["selection_strength"]); ok {
		req.SelectionStrength = &v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["sample_every"]); ok {
		req.SampleEvery = v
	}
	if v, ok := asUint64(raw["seed"]); ok {
		req.Seed = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asFloatMap(v any) (map[string]float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(m))
	for k, item := range m {
		f, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

// asBoundsMap accepts {"K1": [lo, hi]} entries.
func asBoundsMap(raw map[string]any) (map[string]biophys.Bounds, error) {
	out := make(map[string]biophys.Bounds, len(raw))
	for name, item := range raw {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("bounds for %s must be [lower, upper]", name)
		}
		lo, okLo := asFloat64(pair[0])
		hi, okHi := asFloat64(pair[1])
		if !okLo || !okHi {
			return nil, fmt.Errorf("bounds for %s must be numeric", name)
		}
		out[name] = biophys.Bounds{Lower: lo, Upper: hi}
	}
	return out, nil
}

func overridePopulationFromFlags(req *api.PopulationRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "model":
			req.Model = v.(string)
		case "pop":
			req.N = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "dt":
			dt := v.(float64)
			req.Dt = &dt
		case "selection-strength":
			strength := v.(float64)
			req.SelectionStrength = &strength
		case "mutate-single":
			req.MutateSingle = v.(bool)
		case "start-random":
			req.StartRandom = v.(bool)
		case "fitness-goal":
			req.FitnessGoal = v.(float64)
		case "seed":
			req.Seed = v.(uint64)
		}
	}
}

func overrideLineageFromFlags(req *api.LineageRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "model":
			req.Model = v.(string)
		case "n":
			req.N = v.(float64)
		case "mu":
			req.Mu = v.(float64)
		case "dt":
			dt := v.(float64)
			req.Dt = &dt
		case "selection-strength":
			strength := v.(float64)
			req.SelectionStrength = &strength
		case "gens":
			req.Generations = v.(int)
		case "sample-every":
			req.SampleEvery = v.(int)
		case "seed":
			req.Seed = v.(uint64)
		}
	}
}
