// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Action set. Action 0 is staying home (no wage observed), actions 1 and 2
// are the two market activities.
const (
	ActionHome = 0
	ActionOne  = 1
	ActionTwo  = 2
	NumActions = 3
)

// Free utility parameters recovered by the CCP regression:
// theta = (gamma, preference level of action 1, preference level of action 2).
const NumFreeParams = 3

// Mean of a type-1 extreme value shock.
const eulerGamma = 0.57721566490153286

// Default smoothing floor for empirical choice probabilities.
const defaultProbFloor = 1e-6

// ModelConfig collects every primitive of the model. It is immutable once
// handed to the solver; all derived objects carry their own copy.
type ModelConfig struct {
	// Horizon length T (periods are 1..T).
	Periods int
	// Size E of the discrete experience grid.
	GridSize int

	// CRRA risk aversion rho.
	RiskAversion float64
	// Consumption utility weight gamma (linear in the basis).
	CRRAWeight float64
	// Standard deviation of the log-wage shock.
	WageSigma float64

	// Log-wage equation per action: intercept + experience coefficient,
	// plus a shared age-return coefficient on the period index.
	// Index 0 (home) is unused.
	WageIntercept  [NumActions]float64
	WageExperience [NumActions]float64
	WageAge        float64

	// Non-pecuniary preference levels. Preference[ActionHome] is the
	// normalization and must be zero.
	Preference [NumActions]float64

	// Discount rate r; the discount factor is 1/(1+r).
	DiscountRate float64
	// Shock constant for the terminal keep-forever regime. Zero is a
	// sentinel selecting the default eulerGamma / (1 - discount factor);
	// there is no way to configure a literal zero constant. The default
	// is strictly positive, so the sentinel never collides with a value
	// the model itself would produce.
	EulerAdjusted float64

	// Reference normal for the quantile-spaced experience grid.
	GridMean float64
	GridSD   float64

	// Per-action transition law: next experience is drawn from a normal
	// centered at the current level plus Drift[a], with sd Dispersion[a].
	// Conventionally depreciation, stasis, accumulation for actions 0,1,2.
	Drift      [NumActions]float64
	Dispersion [NumActions]float64

	// Prior over the initial experience index. nil means uniform.
	InitialPrior []float64
}

// Kernels holds the experience grid levels and the three row-stochastic
// transition matrices, one per action.
type Kernels struct {
	Levels []float64
	G      [NumActions]*mat.Dense
}

// Solution is the immutable output of the backward-induction solver.
// V is Periods x GridSize; Q and P hold one GridSize x NumActions matrix
// per period.
type Solution struct {
	Config  ModelConfig
	Kernels *Kernels
	V       *mat.Dense
	Q       []*mat.Dense
	P       []*mat.Dense
}

// Trajectory is one simulated individual. Wages[t] is NaN in home periods.
type Trajectory struct {
	Actions    []int
	Experience []int
	Wages      []float64
}

// PanelData is a simulated (or loaded) panel of trajectories.
type PanelData struct {
	Config       ModelConfig
	Trajectories []Trajectory
}

// PanelCCP holds empirical choice probabilities tabulated from a panel.
// P mirrors Solution.P in shape. Counts records raw cell counts,
// StateVisits the per-(t,e) totals. Cells raised to the smoothing floor
// and states never visited are counted so callers can report them.
type PanelCCP struct {
	P               []*mat.Dense
	Counts          []*mat.Dense
	StateVisits     *mat.Dense
	Floor           float64
	FlooredCells    int
	UnvisitedStates int
}

// LinearRep is the Hotz-Miller representation V_t = A_t + B_t * theta.
// A is Periods x GridSize; B holds one GridSize x NumFreeParams matrix
// per period.
type LinearRep struct {
	A *mat.Dense
	B []*mat.Dense
}

// SimulationOptions controls the forward simulator.
type SimulationOptions struct {
	// Number of individuals.
	N int
	// Master RNG seed; 0 means time-based.
	Seed uint64
	// Worker goroutines; 0 means runtime.NumCPU().
	Workers int
}

// EstimationOptions controls the outer risk-aversion search.
type EstimationOptions struct {
	// Candidate rho values; each gets its own CCP recursion and regression.
	RhoGrid []float64
	// Worker goroutines; 0 means runtime.NumCPU().
	Workers int
}

// RhoFit is the regression outcome at one candidate rho. RSS is the
// residual sum of squares of the logit-ratio regression; Score is the
// panel's multinomial choice log-likelihood under the recovered theta,
// which is what the grid search ranks on.
type RhoFit struct {
	Rho   float64
	Theta *mat.VecDense
	RSS   float64
	Score float64
	Rows  int
}

// EstimationResult collects the grid search output.
type EstimationResult struct {
	Fits      []RhoFit
	BestIndex int
	BestRho   float64
	BestTheta *mat.VecDense
}

// PolicySolver is the interface for anything that can solve the dynamic
// program.
type PolicySolver interface {
	Solve(cfg ModelConfig) (*Solution, error)
}

// StructuralEstimator recovers utility parameters from empirical choice
// probabilities.
type StructuralEstimator interface {
	Estimate(ccp *PanelCCP, kern *Kernels, cfg ModelConfig, opts EstimationOptions) (*EstimationResult, error)
}

// BackwardInduction implements PolicySolver by finite-horizon value
// iteration.
type BackwardInduction struct{}

// CCPEstimator implements StructuralEstimator by the Hotz-Miller
// inversion plus least squares.
type CCPEstimator struct{}

// Validate checks every configuration primitive before any computation.
func (cfg ModelConfig) Validate() error {
	if cfg.Periods < 1 {
		return fmt.Errorf("horizon must be >= 1, got %d", cfg.Periods)
	}
	if cfg.GridSize < 1 {
		return fmt.Errorf("grid size must be >= 1, got %d", cfg.GridSize)
	}
	if cfg.GridSD <= 0 {
		return fmt.Errorf("grid reference sd must be > 0, got %v", cfg.GridSD)
	}
	if cfg.WageSigma < 0 {
		return fmt.Errorf("wage shock sd must be >= 0, got %v", cfg.WageSigma)
	}
	if cfg.DiscountRate <= 0 {
		return fmt.Errorf("discount rate must be > 0, got %v", cfg.DiscountRate)
	}
	if cfg.Preference[ActionHome] != 0 {
		return fmt.Errorf("home preference level is the normalization and must be 0, got %v",
			cfg.Preference[ActionHome])
	}
	for a := 0; a < NumActions; a++ {
		if cfg.Dispersion[a] <= 0 {
			return fmt.Errorf("dispersion for action %d must be > 0, got %v", a, cfg.Dispersion[a])
		}
	}

	scalars := []float64{
		cfg.RiskAversion, cfg.CRRAWeight, cfg.WageSigma, cfg.WageAge,
		cfg.DiscountRate, cfg.EulerAdjusted, cfg.GridMean, cfg.GridSD,
	}
	for a := 0; a < NumActions; a++ {
		scalars = append(scalars,
			cfg.WageIntercept[a], cfg.WageExperience[a],
			cfg.Preference[a], cfg.Drift[a], cfg.Dispersion[a])
	}
	for _, v := range scalars {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("configuration contains a non-finite parameter: %v", v)
		}
	}

	if cfg.InitialPrior != nil {
		if len(cfg.InitialPrior) != cfg.GridSize {
			return fmt.Errorf("initial prior has %d weights, grid size is %d",
				len(cfg.InitialPrior), cfg.GridSize)
		}
		total := 0.0
		for e, w := range cfg.InitialPrior {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return fmt.Errorf("initial prior weight %d must be finite and >= 0, got %v", e, w)
			}
			total += w
		}
		if total <= 0 {
			return fmt.Errorf("initial prior has no positive mass")
		}
	}

	return nil
}

// discountFactor converts the configured rate into beta = 1/(1+r).
func (cfg ModelConfig) discountFactor() float64 {
	return 1.0 / (1.0 + cfg.DiscountRate)
}

// terminalShockConstant is the extreme-value mean accrued in the terminal
// keep-forever regime. EulerAdjusted == 0 selects the default; see the
// field comment.
func (cfg ModelConfig) terminalShockConstant() float64 {
	if cfg.EulerAdjusted != 0 {
		return cfg.EulerAdjusted
	}
	return eulerGamma / (1.0 - cfg.discountFactor())
}

// InverseIndexPrior returns the inverse-index weighting over the
// experience grid used by the original exercise: weight 1/(e+1) on index e.
func InverseIndexPrior(gridSize int) []float64 {
	prior := make([]float64, gridSize)
	for e := range prior {
		prior[e] = 1.0 / float64(e+1)
	}
	return prior
}

// TrueTheta assembles the generating parameter vector in basis order.
func TrueTheta(cfg ModelConfig) *mat.VecDense {
	return mat.NewVecDense(NumFreeParams, []float64{
		cfg.CRRAWeight,
		cfg.Preference[ActionOne],
		cfg.Preference[ActionTwo],
	})
}

// DefaultConfig is the baseline parameterization used by the driver and
// the simulation experiments.
func DefaultConfig() ModelConfig {
	return ModelConfig{
		Periods:  8,
		GridSize: 7,

		RiskAversion: 2.0,
		CRRAWeight:   1.2,
		WageSigma:    0.35,

		// The experience returns keep the two market wages well apart
		// across the grid; the resulting wage spread is what lets the
		// CRRA curvature separate neighboring risk-aversion candidates.
		WageIntercept:  [NumActions]float64{0, 0.3, 0.5},
		WageExperience: [NumActions]float64{0, 0.30, 0.05},
		WageAge:        0.02,

		Preference: [NumActions]float64{0, 3.0, 2.0},

		DiscountRate: 0.2,

		GridMean: 8.0,
		GridSD:   3.0,

		Drift:      [NumActions]float64{-0.8, 0.0, 0.9},
		Dispersion: [NumActions]float64{0.6, 0.6, 0.6},

		InitialPrior: InverseIndexPrior(7),
	}
}
