// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// checkChoiceProbabilities verifies that every (t,e) row of P is a strict
// probability distribution. Zero entries would make the log-probability
// terms of the inversion undefined; the tabulation's smoothing floor is
// responsible for preventing them.
func checkChoiceProbabilities(P []*mat.Dense, T, E int) error {
	if len(P) != T {
		return fmt.Errorf("choice probabilities cover %d periods, expected %d", len(P), T)
	}
	for t := 0; t < T; t++ {
		r, c := P[t].Dims()
		if r != E || c != NumActions {
			return fmt.Errorf("period %d probabilities are %dx%d, expected %dx%d", t+1, r, c, E, NumActions)
		}
		for e := 0; e < E; e++ {
			total := 0.0
			for a := 0; a < NumActions; a++ {
				p := P[t].At(e, a)
				if !(p > 0) || math.IsInf(p, 0) {
					return fmt.Errorf("choice probability for action %d at period %d, state %d must be strictly positive, got %v",
						a, t+1, e+1, p)
				}
				total += p
			}
			if math.Abs(total-1.0) > 1e-6 {
				return fmt.Errorf("choice probabilities at period %d, state %d sum to %v", t+1, e+1, total)
			}
		}
	}
	return nil
}

// CCPRecursion runs the Hotz-Miller backward recursion. Driven by choice
// probabilities P (true or empirical), the transition kernels and the
// flow-utility basis, it produces A_t and B_t with V_t = A_t + B_t*theta
// at the generating theta. No nonlinear solve is involved: every step is
// a probability-weighted average of basis rows, entropies and discounted
// continuation terms.
func CCPRecursion(P []*mat.Dense, kern *Kernels, cfg ModelConfig) (*LinearRep, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if kern == nil || len(kern.Levels) != cfg.GridSize {
		return nil, fmt.Errorf("kernels do not match the configured grid")
	}

	T := cfg.Periods
	E := cfg.GridSize
	beta := cfg.discountFactor()

	if err := checkChoiceProbabilities(P, T, E); err != nil {
		return nil, err
	}

	lr := &LinearRep{
		A: mat.NewDense(T, E, nil),
		B: make([]*mat.Dense, T),
	}

	// Entropy term shared by every period: eulerish constant minus
	// sum_a p log p.
	entropy := func(t, e int) float64 {
		ent := 0.0
		for a := 0; a < NumActions; a++ {
			p := P[t].At(e, a)
			ent -= p * math.Log(p)
		}
		return ent
	}

	// Terminal period: flow utility enters through the perpetuity sum,
	// matching the solver's keep-forever closed form.
	perpetuity := 1.0 / (1.0 - beta)
	lr.B[T-1] = mat.NewDense(E, NumFreeParams, nil)
	for e := 0; e < E; e++ {
		lr.A.Set(T-1, e, cfg.terminalShockConstant()+entropy(T-1, e))
		for a := 0; a < NumActions; a++ {
			p := P[T-1].At(e, a)
			basis := cfg.basisRow(a, kern.Levels[e], T-1)
			for k := 0; k < NumFreeParams; k++ {
				lr.B[T-1].Set(e, k, lr.B[T-1].At(e, k)+p*basis[k]*perpetuity)
			}
		}
	}

	// Backward recursion, strictly decreasing in t.
	for t := T - 2; t >= 0; t-- {
		lr.B[t] = mat.NewDense(E, NumFreeParams, nil)

		aNext := mat.NewVecDense(E, nil)
		for e := 0; e < E; e++ {
			aNext.SetVec(e, lr.A.At(t+1, e))
		}

		// Continuation terms per action: G[a] @ A_{t+1} and G[a] @ B_{t+1}.
		contA := make([]*mat.VecDense, NumActions)
		contB := make([]*mat.Dense, NumActions)
		for a := 0; a < NumActions; a++ {
			contA[a] = mat.NewVecDense(E, nil)
			contA[a].MulVec(kern.G[a], aNext)
			contB[a] = mat.NewDense(E, NumFreeParams, nil)
			contB[a].Mul(kern.G[a], lr.B[t+1])
		}

		for e := 0; e < E; e++ {
			aVal := entropy(t, e) + eulerGamma
			for a := 0; a < NumActions; a++ {
				p := P[t].At(e, a)
				aVal += beta * p * contA[a].AtVec(e)

				basis := cfg.basisRow(a, kern.Levels[e], t)
				for k := 0; k < NumFreeParams; k++ {
					lr.B[t].Set(e, k, lr.B[t].At(e, k)+p*(basis[k]+beta*contB[a].At(e, k)))
				}
			}
			lr.A.Set(t, e, aVal)
		}
	}

	return lr, nil
}

// ValidateLinearRep is the engine's correctness oracle: driven by the
// true choice probabilities and evaluated at the true theta, A_t +
// B_t*theta must reproduce the solver's value function. It returns the
// maximum relative error over all (t,e).
func ValidateLinearRep(sol *Solution, lr *LinearRep, theta *mat.VecDense) float64 {
	T := sol.Config.Periods
	E := sol.Config.GridSize

	maxErr := 0.0
	for t := 0; t < T; t++ {
		for e := 0; e < E; e++ {
			pred := lr.A.At(t, e)
			for k := 0; k < NumFreeParams; k++ {
				pred += lr.B[t].At(e, k) * theta.AtVec(k)
			}
			v := sol.V.At(t, e)
			denom := math.Abs(v)
			if denom < 1 {
				denom = 1
			}
			err := math.Abs(pred-v) / denom
			if err > maxErr {
				maxErr = err
			}
		}
	}
	return maxErr
}
