// Project: CCP-Based Estimation of a Dynamic Labor Supply Model
// Method: Backward induction, forward simulation, Hotz-Miller inversion
// Course: ECON 34430 (Structural Econometrics), Go implementation

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// OutputPanelToCSV writes the panel in long format.
// Columns: Individual, Period, Action, Experience, Wage. Missing wages
// (home periods) are written as NA.
func OutputPanelToCSV(path string, panel *PanelData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Individual", "Period", "Action", "Experience", "Wage"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, traj := range panel.Trajectories {
		for t := range traj.Actions {
			wage := "NA"
			if !math.IsNaN(traj.Wages[t]) {
				wage = fmt.Sprintf("%f", traj.Wages[t])
			}
			record := []string{
				fmt.Sprintf("%d", i+1),
				fmt.Sprintf("%d", t+1),
				fmt.Sprintf("%d", traj.Actions[t]),
				fmt.Sprintf("%d", traj.Experience[t]+1),
				wage,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadPanelFromCSV reads a panel written by OutputPanelToCSV. Individuals
// must appear in contiguous blocks of cfg.Periods rows each.
func LoadPanelFromCSV(path string, cfg ModelConfig) (*PanelData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	panel := &PanelData{Config: cfg}
	var current *Trajectory
	row := 0

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		if len(record) != 5 {
			return nil, fmt.Errorf("row %d: expected 5 columns, got %d", row+2, len(record))
		}

		period, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("parse period at row %d (%q): %w", row+2, record[1], err)
		}
		action, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("parse action at row %d (%q): %w", row+2, record[2], err)
		}
		experience, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, fmt.Errorf("parse experience at row %d (%q): %w", row+2, record[3], err)
		}

		wage := math.NaN()
		if record[4] != "NA" {
			wage, err = strconv.ParseFloat(record[4], 64)
			if err != nil {
				return nil, fmt.Errorf("parse wage at row %d (%q): %w", row+2, record[4], err)
			}
		}

		if period == 1 {
			panel.Trajectories = append(panel.Trajectories, Trajectory{})
			current = &panel.Trajectories[len(panel.Trajectories)-1]
		}
		if current == nil {
			return nil, fmt.Errorf("row %d: data does not start at period 1", row+2)
		}
		if period != len(current.Actions)+1 {
			return nil, fmt.Errorf("row %d: period %d out of order", row+2, period)
		}

		current.Actions = append(current.Actions, action)
		current.Experience = append(current.Experience, experience-1)
		current.Wages = append(current.Wages, wage)
		row++
	}

	if row == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}
	for i, traj := range panel.Trajectories {
		if len(traj.Actions) != cfg.Periods {
			return nil, fmt.Errorf("individual %d has %d periods, expected %d",
				i+1, len(traj.Actions), cfg.Periods)
		}
	}

	return panel, nil
}

// OutputEstimationToCSV writes the rho-grid search results.
// Columns: Rho, Gamma, Pref1, Pref2, RSS, Score, Rows, Best.
func OutputEstimationToCSV(path string, res *EstimationResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Rho", "Gamma", "Pref1", "Pref2", "RSS", "Score", "Rows", "Best"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, fit := range res.Fits {
		record := []string{
			fmt.Sprintf("%f", fit.Rho),
			fmt.Sprintf("%f", fit.Theta.AtVec(0)),
			fmt.Sprintf("%f", fit.Theta.AtVec(1)),
			fmt.Sprintf("%f", fit.Theta.AtVec(2)),
			fmt.Sprintf("%f", fit.RSS),
			fmt.Sprintf("%f", fit.Score),
			fmt.Sprintf("%d", fit.Rows),
			fmt.Sprintf("%t", i == res.BestIndex),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// PrintKernel prints one action's transition kernel.
func PrintKernel(kern *Kernels, action int) {
	fmt.Printf("\n=== Transition kernel, action %d ===\n", action)
	fmt.Printf("%v\n", mat.Formatted(kern.G[action], mat.Prefix(" ")))
}

// PrintSolutionSummary reports the solved model's dimensions and value
// function.
func PrintSolutionSummary(sol *Solution) {
	if sol == nil {
		fmt.Println("model not solved")
		return
	}
	cfg := sol.Config

	fmt.Println("        Solved Model Summary        ")
	fmt.Printf("Horizon (T):             %d\n", cfg.Periods)
	fmt.Printf("Experience grid (E):     %d\n", cfg.GridSize)
	fmt.Printf("Risk aversion (rho):     %g\n", cfg.RiskAversion)
	fmt.Printf("Utility weight (gamma):  %g\n", cfg.CRRAWeight)
	fmt.Printf("Discount factor (beta):  %.4f\n", cfg.discountFactor())
	fmt.Println()

	fmt.Println("Value function V (rows: periods, cols: experience):")
	fmt.Printf("%v\n", mat.Formatted(sol.V, mat.Prefix("  ")))
	fmt.Println()

	fmt.Println("Choice probabilities, first period:")
	fmt.Printf("%v\n", mat.Formatted(sol.P[0], mat.Prefix("  ")))
	fmt.Println("====================================")
}

// PrintChoiceFrequencies prints the panel's pooled action shares.
func PrintChoiceFrequencies(panel *PanelData) {
	freq := panel.ChoiceFrequencies()
	fmt.Println("\n=== Simulated choice frequencies ===")
	fmt.Printf("Home:       %6.4f\n", freq[ActionHome])
	fmt.Printf("Activity 1: %6.4f\n", freq[ActionOne])
	fmt.Printf("Activity 2: %6.4f\n", freq[ActionTwo])
}

// PrintEstimation prints the rho-grid results as a table.
func PrintEstimation(res *EstimationResult) {
	fmt.Println("\n=== CCP Estimation Results ===")
	fmt.Printf("%8s | %10s | %10s | %10s | %12s | %14s | %5s\n",
		"Rho", "Gamma", "Pref1", "Pref2", "RSS", "LogLik", "Rows")
	fmt.Println("-------------------------------------------------------------------------------------")
	for i, fit := range res.Fits {
		marker := " "
		if i == res.BestIndex {
			marker = "*"
		}
		fmt.Printf("%7.2f%s | %10.4f | %10.4f | %10.4f | %12.6f | %14.2f | %5d\n",
			fit.Rho, marker,
			fit.Theta.AtVec(0), fit.Theta.AtVec(1), fit.Theta.AtVec(2),
			fit.RSS, fit.Score, fit.Rows)
	}
	fmt.Printf("\nBest rho: %g\n", res.BestRho)
}
