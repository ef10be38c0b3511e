// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// crra is the constant-relative-risk-aversion flow utility of a wage.
// rho = 1 is the log-utility limit.
func crra(w, rho float64) float64 {
	if rho == 1 {
		return math.Log(w)
	}
	return math.Pow(w, 1.0-rho) / (1.0 - rho)
}

// jensenScale corrects the utility of the expected wage for the
// log-normal wage shock: E[w^(1-rho)] = wbar^(1-rho) * exp(sigma^2 (1-rho)^2 / 2).
func (cfg ModelConfig) jensenScale() float64 {
	d := 1.0 - cfg.RiskAversion
	return math.Exp(cfg.WageSigma * cfg.WageSigma * d * d / 2.0)
}

// meanLogWage is the deterministic log-wage component of a market action
// at experience level `level` in period index t (0-based).
func (cfg ModelConfig) meanLogWage(a int, level float64, t int) float64 {
	return cfg.WageIntercept[a] + cfg.WageExperience[a]*level + cfg.WageAge*float64(t+1)
}

// flowUtility is the pre-shock per-period utility of an action.
func (cfg ModelConfig) flowUtility(a int, level float64, t int) float64 {
	if a == ActionHome {
		return cfg.Preference[ActionHome]
	}
	wbar := math.Exp(cfg.meanLogWage(a, level, t))
	return cfg.jensenScale()*cfg.CRRAWeight*crra(wbar, cfg.RiskAversion) + cfg.Preference[a]
}

// basisRow expresses flowUtility as a linear combination of the free
// parameter vector theta = (gamma, pref_1, pref_2): column 0 carries the
// scaled CRRA wage term, columns 1 and 2 the market-action indicators.
// The home row is all zeros (its preference level is the normalization).
func (cfg ModelConfig) basisRow(a int, level float64, t int) []float64 {
	row := make([]float64, NumFreeParams)
	if a == ActionHome {
		return row
	}
	wbar := math.Exp(cfg.meanLogWage(a, level, t))
	row[0] = cfg.jensenScale() * crra(wbar, cfg.RiskAversion)
	row[a] = 1.0
	return row
}

// Solve runs the finite-horizon backward induction and returns the
// immutable V, Q and P arrays together with the kernels they were built
// from. The recursion over periods is strictly sequential: period t
// needs period t+1's completed values.
func (s *BackwardInduction) Solve(cfg ModelConfig) (*Solution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kern, err := BuildKernels(cfg)
	if err != nil {
		return nil, err
	}

	T := cfg.Periods
	E := cfg.GridSize
	beta := cfg.discountFactor()

	sol := &Solution{
		Config:  cfg,
		Kernels: kern,
		V:       mat.NewDense(T, E, nil),
		Q:       make([]*mat.Dense, T),
		P:       make([]*mat.Dense, T),
	}

	// Terminal period: the last decision is kept forever, so each action
	// is worth its flow utility in perpetuity and the shock mean accrues
	// at the discount-adjusted Euler constant.
	perpetuity := 1.0 / (1.0 - beta)
	sol.Q[T-1] = mat.NewDense(E, NumActions, nil)
	sol.P[T-1] = mat.NewDense(E, NumActions, nil)
	for e := 0; e < E; e++ {
		q := make([]float64, NumActions)
		for a := 0; a < NumActions; a++ {
			q[a] = cfg.flowUtility(a, kern.Levels[e], T-1) * perpetuity
			sol.Q[T-1].Set(e, a, q[a])
		}
		lse := floats.LogSumExp(q)
		sol.V.Set(T-1, e, lse+cfg.terminalShockConstant())
		for a := 0; a < NumActions; a++ {
			sol.P[T-1].Set(e, a, math.Exp(q[a]-lse))
		}
	}

	// Interior periods, strictly decreasing in t.
	for t := T - 2; t >= 0; t-- {
		sol.Q[t] = mat.NewDense(E, NumActions, nil)
		sol.P[t] = mat.NewDense(E, NumActions, nil)

		// Continuation value per action: (G[a] @ V_{t+1}).
		vNext := mat.NewVecDense(E, nil)
		for e := 0; e < E; e++ {
			vNext.SetVec(e, sol.V.At(t+1, e))
		}
		cont := make([]*mat.VecDense, NumActions)
		for a := 0; a < NumActions; a++ {
			cont[a] = mat.NewVecDense(E, nil)
			cont[a].MulVec(kern.G[a], vNext)
		}

		for e := 0; e < E; e++ {
			q := make([]float64, NumActions)
			for a := 0; a < NumActions; a++ {
				q[a] = cfg.flowUtility(a, kern.Levels[e], t) + beta*cont[a].AtVec(e)
				sol.Q[t].Set(e, a, q[a])
			}
			lse := floats.LogSumExp(q)
			sol.V.Set(t, e, lse+eulerGamma)
			for a := 0; a < NumActions; a++ {
				sol.P[t].Set(e, a, math.Exp(q[a]-lse))
			}
		}
	}

	// Smoothed max must be finite everywhere the flow utilities are.
	for t := 0; t < T; t++ {
		for e := 0; e < E; e++ {
			if math.IsNaN(sol.V.At(t, e)) || math.IsInf(sol.V.At(t, e), 0) {
				return nil, fmt.Errorf("value function is non-finite at period %d, state %d", t+1, e+1)
			}
		}
	}

	return sol, nil
}
