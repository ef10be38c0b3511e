// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"math"
	"testing"
)

func TestSolveProbabilitiesSumToOne(t *testing.T) {
	sol, err := (&BackwardInduction{}).Solve(DefaultConfig())
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	cfg := sol.Config
	for tt := 0; tt < cfg.Periods; tt++ {
		for e := 0; e < cfg.GridSize; e++ {
			sum := 0.0
			for a := 0; a < NumActions; a++ {
				p := sol.P[tt].At(e, a)
				if p < 0 || p > 1 {
					t.Errorf("P[%d,%d,%d] = %v outside [0,1]", tt, e, a, p)
				}
				sum += p
			}
			if !almostEqual(sum, 1.0, 1e-9) {
				t.Errorf("P row at period %d, state %d sums to %v, want 1", tt, e, sum)
			}
		}
	}
}

func TestSmoothedMaxDominates(t *testing.T) {
	sol, err := (&BackwardInduction{}).Solve(DefaultConfig())
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}

	cfg := sol.Config
	for tt := 0; tt < cfg.Periods; tt++ {
		for e := 0; e < cfg.GridSize; e++ {
			maxQ := math.Inf(-1)
			for a := 0; a < NumActions; a++ {
				q := sol.Q[tt].At(e, a)
				if math.IsNaN(q) || math.IsInf(q, 0) {
					t.Fatalf("Q[%d,%d,%d] = %v is non-finite", tt, e, a, q)
				}
				if q > maxQ {
					maxQ = q
				}
			}
			v := sol.V.At(tt, e)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("V[%d,%d] = %v is non-finite", tt, e, v)
			}
			if v < maxQ {
				t.Errorf("V[%d,%d] = %v below max Q = %v", tt, e, v, maxQ)
			}
		}
	}
}

func TestSolveInvalidConfig(t *testing.T) {
	cases := []func(*ModelConfig){
		func(c *ModelConfig) { c.Periods = 0 },
		func(c *ModelConfig) { c.GridSize = 0 },
		func(c *ModelConfig) { c.Dispersion[ActionOne] = 0 },
		func(c *ModelConfig) { c.Dispersion[ActionTwo] = -0.5 },
		func(c *ModelConfig) { c.DiscountRate = 0 },
		func(c *ModelConfig) { c.Preference[ActionHome] = 1 },
		func(c *ModelConfig) { c.WageSigma = math.NaN() },
		func(c *ModelConfig) { c.InitialPrior = []float64{1, 2} },
		func(c *ModelConfig) { c.InitialPrior = make([]float64, 7) },
	}

	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := (&BackwardInduction{}).Solve(cfg); err == nil {
			t.Errorf("Test %d: expected configuration error, got nil", i+1)
		}
	}
}

func TestPreferenceRaisesChoiceProbability(t *testing.T) {
	base := DefaultConfig()
	bumped := base
	bumped.Preference[ActionOne] += 0.5

	solBase, err := (&BackwardInduction{}).Solve(base)
	if err != nil {
		t.Fatalf("Solve(base) returned error: %v", err)
	}
	solBumped, err := (&BackwardInduction{}).Solve(bumped)
	if err != nil {
		t.Fatalf("Solve(bumped) returned error: %v", err)
	}

	for tt := 0; tt < base.Periods; tt++ {
		for e := 0; e < base.GridSize; e++ {
			p0 := solBase.P[tt].At(e, ActionOne)
			p1 := solBumped.P[tt].At(e, ActionOne)
			if p1 <= p0 {
				t.Errorf("raising the preference level did not raise P at period %d, state %d: %v <= %v",
					tt, e, p1, p0)
			}
		}
	}
}

func TestLogUtilityLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiskAversion = 1.0

	sol, err := (&BackwardInduction{}).Solve(cfg)
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	for tt := 0; tt < cfg.Periods; tt++ {
		for e := 0; e < cfg.GridSize; e++ {
			if math.IsNaN(sol.V.At(tt, e)) {
				t.Fatalf("V[%d,%d] is NaN under log utility", tt, e)
			}
		}
	}

	// jensenScale degenerates to 1 at rho = 1.
	if !almostEqual(cfg.jensenScale(), 1.0, 1e-12) {
		t.Errorf("jensenScale at rho=1 is %v, want 1", cfg.jensenScale())
	}
}

// EulerAdjusted documents zero as the sentinel for the default terminal
// constant; pin both that behavior and the override.
func TestTerminalShockConstant(t *testing.T) {
	cfg := DefaultConfig()

	beta := cfg.discountFactor()
	want := eulerGamma / (1.0 - beta)
	if !almostEqual(cfg.terminalShockConstant(), want, 1e-12) {
		t.Errorf("default terminal constant is %v, want %v", cfg.terminalShockConstant(), want)
	}

	cfg.EulerAdjusted = 0
	if !almostEqual(cfg.terminalShockConstant(), want, 1e-12) {
		t.Errorf("zero sentinel gave %v, want the default %v", cfg.terminalShockConstant(), want)
	}

	cfg.EulerAdjusted = 1.25
	if !almostEqual(cfg.terminalShockConstant(), 1.25, 1e-12) {
		t.Errorf("explicit terminal constant gave %v, want 1.25", cfg.terminalShockConstant())
	}
}
