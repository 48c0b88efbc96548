package biophys

// Model is a deterministic biophysical model built from a parameter map.
// Output must have a fixed length for a given model type.
type Model interface {
	Output() []float64
	Params() ParameterMap
}

// Constructor builds a model from parameters keyed by name.
type Constructor func(params ParameterMap) (Model, error)

// curveModel is the shared value type behind the bundled binding models.
type curveModel struct {
	params ParameterMap
	output []float64
}

func (m curveModel) Output() []float64 {
	out := make([]float64, len(m.output))
	copy(out, m.output)
	return out
}

func (m curveModel) Params() ParameterMap {
	return m.params.Clone()
}
