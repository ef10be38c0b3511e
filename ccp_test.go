// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// The correctness oracle of the whole inversion: driven by the true
// choice probabilities, A_t + B_t*theta must reproduce the solver's
// value function at the true theta, for every (t,e).
func TestHotzMillerIdentity(t *testing.T) {
	configs := []ModelConfig{DefaultConfig()}

	logCfg := DefaultConfig()
	logCfg.RiskAversion = 1.0
	configs = append(configs, logCfg)

	shortCfg := DefaultConfig()
	shortCfg.Periods = 1
	configs = append(configs, shortCfg)

	for i, cfg := range configs {
		sol, err := (&BackwardInduction{}).Solve(cfg)
		if err != nil {
			t.Fatalf("Test %d: Solve returned error: %v", i+1, err)
		}

		lr, err := CCPRecursion(sol.P, sol.Kernels, cfg)
		if err != nil {
			t.Fatalf("Test %d: CCPRecursion returned error: %v", i+1, err)
		}

		maxErr := ValidateLinearRep(sol, lr, TrueTheta(cfg))
		if maxErr > 1e-6 {
			t.Errorf("Test %d: identity violated: max relative error %v", i+1, maxErr)
		}
	}
}

func TestCCPRecursionRejectsZeroProbabilities(t *testing.T) {
	cfg := DefaultConfig()
	sol, err := (&BackwardInduction{}).Solve(cfg)
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	// Copy the true probabilities and zero out one cell.
	P := make([]*mat.Dense, cfg.Periods)
	for tt := range P {
		P[tt] = mat.DenseCopyOf(sol.P[tt])
	}
	P[2].Set(1, ActionOne, 0)
	P[2].Set(1, ActionHome, P[2].At(1, ActionHome)+sol.P[2].At(1, ActionOne))

	if _, err := CCPRecursion(P, sol.Kernels, cfg); err == nil {
		t.Errorf("expected error for a zero choice probability")
	}
}

func TestCCPRecursionRejectsBadShape(t *testing.T) {
	cfg := DefaultConfig()
	sol, err := (&BackwardInduction{}).Solve(cfg)
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	if _, err := CCPRecursion(sol.P[:cfg.Periods-1], sol.Kernels, cfg); err == nil {
		t.Errorf("expected error for missing periods")
	}

	bad := make([]*mat.Dense, cfg.Periods)
	for tt := range bad {
		bad[tt] = mat.NewDense(cfg.GridSize+1, NumActions, nil)
	}
	if _, err := CCPRecursion(bad, sol.Kernels, cfg); err == nil {
		t.Errorf("expected error for wrong state dimension")
	}
}

// Floored empirical probabilities must flow through the recursion without
// producing NaN or Inf anywhere in A or B.
func TestCCPRecursionFiniteWithFloor(t *testing.T) {
	cfg := DefaultConfig()
	sol, err := (&BackwardInduction{}).Solve(cfg)
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	// A small panel guarantees zero-count cells (the terminal period is
	// close to degenerate under the perpetuity payoff).
	panel, err := sol.Simulate(SimulationOptions{N: 300, Seed: 4})
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	ccp, err := panel.TabulateCCP(0)
	if err != nil {
		t.Fatalf("TabulateCCP returned error: %v", err)
	}
	if ccp.FlooredCells == 0 {
		t.Fatalf("expected floored cells in a small panel; tabulation reports none")
	}

	lr, err := CCPRecursion(ccp.P, sol.Kernels, cfg)
	if err != nil {
		t.Fatalf("CCPRecursion returned error: %v", err)
	}

	for tt := 0; tt < cfg.Periods; tt++ {
		for e := 0; e < cfg.GridSize; e++ {
			a := lr.A.At(tt, e)
			if math.IsNaN(a) || math.IsInf(a, 0) {
				t.Errorf("A[%d,%d] = %v is non-finite", tt, e, a)
			}
			for k := 0; k < NumFreeParams; k++ {
				b := lr.B[tt].At(e, k)
				if math.IsNaN(b) || math.IsInf(b, 0) {
					t.Errorf("B[%d][%d,%d] = %v is non-finite", tt, e, k, b)
				}
			}
		}
	}
}
