package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// modelDocument is the YAML layout written by ExportModel.
type modelDocument struct {
	Engine  string  `yaml:"engine"`
	Problem Problem `yaml:"problem"`
}

// ParamsDocument is the YAML layout written by ExportParams.
type ParamsDocument struct {
	IterationLimit int    `yaml:"iteration_limit"`
	TimeLimit      string `yaml:"time_limit,omitempty"`
	Population     int    `yaml:"population"`
	Seed           int64  `yaml:"seed"`
	NextRound      int    `yaml:"next_round"`
}

// Solution is the JSON layout written by ExportSolution.
type Solution struct {
	Status       string    `json:"status"`
	Rounds       int       `json:"rounds"`
	Objective    float64   `json:"objective"`
	MaxViolation float64   `json:"maxViolation"`
	Position     []float64 `json:"position"`
	Timestamp    time.Time `json:"timestamp"`
}

// ExportModel writes the problem definition as YAML.
func (e *Engine) ExportModel(path string) error {
	data, err := yaml.Marshal(modelDocument{Engine: Version, Problem: e.problem})
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	return writeFileAtomic(path, data)
}

// ExportParams writes the parameters the next round will use as YAML.
func (e *Engine) ExportParams(path string) error {
	doc := ParamsDocument{
		IterationLimit: e.iterationLimit,
		Population:     e.population,
		Seed:           e.seed + int64(e.rounds),
		NextRound:      e.rounds + 1,
	}
	if e.timeLimit > 0 {
		doc.TimeLimit = e.timeLimit.String()
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize params: %w", err)
	}
	return writeFileAtomic(path, data)
}

// ExportSolution writes the best point as indented JSON.
func (e *Engine) ExportSolution(path string) error {
	if !e.hasBest {
		return fmt.Errorf("no solution available")
	}
	data, err := json.MarshalIndent(Solution{
		Status:       e.status.String(),
		Rounds:       e.rounds,
		Objective:    e.bestObjective,
		MaxViolation: e.bestViolation,
		Position:     e.best,
		Timestamp:    time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize solution: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
