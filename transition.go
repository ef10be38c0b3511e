// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GridLevels builds the quantile-spaced experience grid: grid point e sits
// at the (e+0.5)/E quantile of the reference normal, so the grid is
// uniform in cumulative probability rather than in levels.
func GridLevels(cfg ModelConfig) ([]float64, error) {
	if cfg.GridSize < 1 {
		return nil, fmt.Errorf("grid size must be >= 1, got %d", cfg.GridSize)
	}
	if cfg.GridSD <= 0 {
		return nil, fmt.Errorf("grid reference sd must be > 0, got %v", cfg.GridSD)
	}

	ref := distuv.Normal{Mu: cfg.GridMean, Sigma: cfg.GridSD}
	levels := make([]float64, cfg.GridSize)
	for e := 0; e < cfg.GridSize; e++ {
		levels[e] = ref.Quantile((float64(e) + 0.5) / float64(cfg.GridSize))
	}
	return levels, nil
}

// BuildTransition builds one E x E row-stochastic kernel over the given
// grid levels. Row e puts density proportional to a normal centered at
// levels[e]+drift with the given dispersion, evaluated at each grid
// point, then renormalizes.
func BuildTransition(drift, dispersion float64, levels []float64) (*mat.Dense, error) {
	if dispersion <= 0 {
		return nil, fmt.Errorf("dispersion must be > 0, got %v", dispersion)
	}
	E := len(levels)
	if E < 1 {
		return nil, fmt.Errorf("grid must have at least one level")
	}

	G := mat.NewDense(E, E, nil)
	for e := 0; e < E; e++ {
		step := distuv.Normal{Mu: levels[e] + drift, Sigma: dispersion}

		total := 0.0
		row := make([]float64, E)
		for next := 0; next < E; next++ {
			row[next] = step.Prob(levels[next])
			total += row[next]
		}
		// The normal density is strictly positive, so total > 0.
		for next := 0; next < E; next++ {
			G.Set(e, next, row[next]/total)
		}
	}
	return G, nil
}

// BuildKernels builds the grid and the three per-action kernels from the
// configured drifts and dispersions.
func BuildKernels(cfg ModelConfig) (*Kernels, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	levels, err := GridLevels(cfg)
	if err != nil {
		return nil, err
	}

	kern := &Kernels{Levels: levels}
	for a := 0; a < NumActions; a++ {
		G, err := BuildTransition(cfg.Drift[a], cfg.Dispersion[a], levels)
		if err != nil {
			return nil, fmt.Errorf("kernel for action %d: %v", a, err)
		}
		kern.G[a] = G
	}
	return kern, nil
}
