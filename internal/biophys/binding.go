package biophys

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	ligandPoints = 25
	ligandMin    = 1e-3
	ligandMax    = 1e3
)

// LigandGrid returns the log-spaced ligand concentrations every bundled
// binding model is evaluated on.
func LigandGrid() []float64 {
	return floats.LogSpan(make([]float64, ligandPoints), ligandMin, ligandMax)
}

// NewAdair builds a two-site Adair binding model from K1 and K2. Output is
// fractional saturation over LigandGrid.
func NewAdair(params ParameterMap) (Model, error) {
	if err := requireParams("adair", params, "K1", "K2"); err != nil {
		return nil, err
	}
	k1, k2 := params["K1"], params["K2"]

	grid := LigandGrid()
	output := make([]float64, len(grid))
	for i, x := range grid {
		num := k1*x + 2*k1*k2*x*x
		den := 2 * (1 + k1*x + k1*k2*x*x)
		output[i] = num / den
	}
	return curveModel{params: params.Clone(), output: output}, nil
}

// NewHill builds a Hill binding model from Kd and the Hill coefficient n.
// The curve x^n/(Kd^n+x^n) is evaluated as 1/(1+(Kd/x)^n) so it stays finite
// for large n.
func NewHill(params ParameterMap) (Model, error) {
	if err := requireParams("hill", params, "Kd", "n"); err != nil {
		return nil, err
	}
	kd, n := params["Kd"], params["n"]

	grid := LigandGrid()
	output := make([]float64, len(grid))
	for i, x := range grid {
		output[i] = hillSaturation(x, kd, n)
	}
	return curveModel{params: params.Clone(), output: output}, nil
}

func hillSaturation(x, kd, n float64) float64 {
	if n == 0 {
		return 0.5
	}
	if x == 0 {
		if kd == 0 {
			return 0.5
		}
		return 0
	}
	return 1 / (1 + math.Pow(kd/x, n))
}
