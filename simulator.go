// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampleCategorical draws an index proportional to the given non-negative
// weights. Categorical sampling is invariant to positive rescaling, so
// the weights need not sum to one.
func sampleCategorical(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	u := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	return len(weights) - 1
}

// simulateOne draws a single trajectory from the solved policy. Periods
// are strictly sequential: the realized action determines the next
// experience draw.
func (sol *Solution) simulateOne(rng *rand.Rand) Trajectory {
	cfg := sol.Config
	T := cfg.Periods

	traj := Trajectory{
		Actions:    make([]int, T),
		Experience: make([]int, T),
		Wages:      make([]float64, T),
	}

	prior := cfg.InitialPrior
	if prior == nil {
		prior = make([]float64, cfg.GridSize)
		for e := range prior {
			prior[e] = 1.0
		}
	}

	shock := distuv.Normal{Mu: 0, Sigma: cfg.WageSigma, Src: rng}

	e := sampleCategorical(rng, prior)
	for t := 0; t < T; t++ {
		traj.Experience[t] = e

		a := sampleCategorical(rng, sol.P[t].RawRowView(e))
		traj.Actions[t] = a

		if a == ActionHome {
			// Home yields no wage observation.
			traj.Wages[t] = math.NaN()
		} else {
			traj.Wages[t] = math.Exp(cfg.meanLogWage(a, sol.Kernels.Levels[e], t) + shock.Rand())
		}

		if t < T-1 {
			e = sampleCategorical(rng, sol.Kernels.G[a].RawRowView(e))
		}
	}
	return traj
}

// Simulate draws opts.N independent trajectories from the solved policy.
// A master RNG expands the seed into one sub-seed per individual, so the
// panel is reproducible regardless of how the work is scheduled across
// workers.
func (sol *Solution) Simulate(opts SimulationOptions) (*PanelData, error) {
	if sol == nil || sol.V == nil {
		return nil, fmt.Errorf("model not solved")
	}
	if opts.N <= 0 {
		return nil, fmt.Errorf("population size must be > 0, got %d", opts.N)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	masterRng := rand.New(rand.NewSource(seed))

	seeds := make([]uint64, opts.N)
	for i := range seeds {
		seeds[i] = masterRng.Uint64()
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > opts.N {
		numWorkers = opts.N
	}

	trajs := make([]Trajectory, opts.N)
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			// Each individual gets its own RNG stream.
			rng := rand.New(rand.NewSource(seeds[i]))
			trajs[i] = sol.simulateOne(rng)
		}
	}

	for w := 0; w < numWorkers; w++ {
		go worker()
	}

	for i := 0; i < opts.N; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return &PanelData{Config: sol.Config, Trajectories: trajs}, nil
}

// ChoiceFrequencies returns the empirical share of each action pooled
// over all individuals and periods.
func (panel *PanelData) ChoiceFrequencies() [NumActions]float64 {
	var freq [NumActions]float64
	total := 0.0
	for _, traj := range panel.Trajectories {
		for _, a := range traj.Actions {
			freq[a]++
			total++
		}
	}
	if total > 0 {
		for a := range freq {
			freq[a] /= total
		}
	}
	return freq
}

// TabulateCCP turns a panel into empirical choice probabilities per
// (period, experience) state. Cells below the smoothing floor are raised
// to it and the row renormalized; states never visited get a uniform row
// and are excluded from estimation via StateVisits. Both adjustments are
// counted on the result. floor <= 0 selects the default.
func (panel *PanelData) TabulateCCP(floor float64) (*PanelCCP, error) {
	if panel == nil || len(panel.Trajectories) == 0 {
		return nil, fmt.Errorf("panel data not provided")
	}
	if floor <= 0 {
		floor = defaultProbFloor
	}
	if floor >= 1.0/float64(NumActions) {
		return nil, fmt.Errorf("smoothing floor %v is too large for %d actions", floor, NumActions)
	}

	cfg := panel.Config
	T := cfg.Periods
	E := cfg.GridSize

	ccp := &PanelCCP{
		P:           make([]*mat.Dense, T),
		Counts:      make([]*mat.Dense, T),
		StateVisits: mat.NewDense(T, E, nil),
		Floor:       floor,
	}
	for t := 0; t < T; t++ {
		ccp.P[t] = mat.NewDense(E, NumActions, nil)
		ccp.Counts[t] = mat.NewDense(E, NumActions, nil)
	}

	for _, traj := range panel.Trajectories {
		if len(traj.Actions) != T || len(traj.Experience) != T {
			return nil, fmt.Errorf("trajectory has %d periods, expected %d", len(traj.Actions), T)
		}
		for t := 0; t < T; t++ {
			e := traj.Experience[t]
			a := traj.Actions[t]
			if e < 0 || e >= E {
				return nil, fmt.Errorf("experience index %d out of range at period %d", e, t+1)
			}
			if a < 0 || a >= NumActions {
				return nil, fmt.Errorf("action %d out of range at period %d", a, t+1)
			}
			ccp.Counts[t].Set(e, a, ccp.Counts[t].At(e, a)+1)
			ccp.StateVisits.Set(t, e, ccp.StateVisits.At(t, e)+1)
		}
	}

	for t := 0; t < T; t++ {
		for e := 0; e < E; e++ {
			n := ccp.StateVisits.At(t, e)
			if n == 0 {
				// No data at this state: fill uniformly so the backward
				// recursion stays defined, and leave it out of the
				// regression.
				for a := 0; a < NumActions; a++ {
					ccp.P[t].Set(e, a, 1.0/float64(NumActions))
				}
				ccp.UnvisitedStates++
				continue
			}

			row := make([]float64, NumActions)
			total := 0.0
			for a := 0; a < NumActions; a++ {
				row[a] = ccp.Counts[t].At(e, a) / n
				if row[a] < floor {
					row[a] = floor
					ccp.FlooredCells++
				}
				total += row[a]
			}
			for a := 0; a < NumActions; a++ {
				ccp.P[t].Set(e, a, row[a]/total)
			}
		}
	}

	return ccp, nil
}
