// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPanelCSVRoundTrip(t *testing.T) {
	sol, err := (&BackwardInduction{}).Solve(DefaultConfig())
	if err != nil {
		t.Fatalf("Solve returned error: %v", err)
	}
	panel, err := sol.Simulate(SimulationOptions{N: 25, Seed: 11})
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "panel.csv")
	if err := OutputPanelToCSV(path, panel); err != nil {
		t.Fatalf("OutputPanelToCSV returned error: %v", err)
	}

	loaded, err := LoadPanelFromCSV(path, sol.Config)
	if err != nil {
		t.Fatalf("LoadPanelFromCSV returned error: %v", err)
	}

	if len(loaded.Trajectories) != len(panel.Trajectories) {
		t.Fatalf("loaded %d individuals, want %d", len(loaded.Trajectories), len(panel.Trajectories))
	}
	for i := range panel.Trajectories {
		orig := panel.Trajectories[i]
		got := loaded.Trajectories[i]
		for tt := range orig.Actions {
			if got.Actions[tt] != orig.Actions[tt] {
				t.Errorf("individual %d, period %d: action %d, want %d", i+1, tt+1, got.Actions[tt], orig.Actions[tt])
			}
			if got.Experience[tt] != orig.Experience[tt] {
				t.Errorf("individual %d, period %d: experience %d, want %d", i+1, tt+1, got.Experience[tt], orig.Experience[tt])
			}
			// Wages go through a %f round trip, so only compare coarsely;
			// the missing pattern must match exactly.
			origMissing := orig.Wages[tt] != orig.Wages[tt]
			gotMissing := got.Wages[tt] != got.Wages[tt]
			if origMissing != gotMissing {
				t.Errorf("individual %d, period %d: missing-wage pattern differs", i+1, tt+1)
			}
			if !origMissing && !almostEqual(got.Wages[tt], orig.Wages[tt], 1e-5) {
				t.Errorf("individual %d, period %d: wage %v, want %v", i+1, tt+1, got.Wages[tt], orig.Wages[tt])
			}
		}
	}
}

func TestLoadPanelFromCSVMissingFile(t *testing.T) {
	if _, err := LoadPanelFromCSV(filepath.Join(t.TempDir(), "missing.csv"), DefaultConfig()); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestOutputEstimationToCSV(t *testing.T) {
	res := &EstimationResult{
		Fits: []RhoFit{
			{Rho: 1.5, Theta: mat.NewVecDense(NumFreeParams, []float64{1.1, 2.9, 2.1}), RSS: 0.5, Score: -0.5, Rows: 90},
			{Rho: 2.0, Theta: mat.NewVecDense(NumFreeParams, []float64{1.2, 3.0, 2.0}), RSS: 0.2, Score: -0.2, Rows: 90},
		},
		BestIndex: 1,
		BestRho:   2.0,
	}
	res.BestTheta = res.Fits[1].Theta

	path := filepath.Join(t.TempDir(), "estimates.csv")
	if err := OutputEstimationToCSV(path, res); err != nil {
		t.Fatalf("OutputEstimationToCSV returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(records))
	}
	if records[0][0] != "Rho" {
		t.Errorf("header starts with %q, want Rho", records[0][0])
	}
	if records[2][7] != "true" {
		t.Errorf("best row not flagged: %v", records[2])
	}
}
