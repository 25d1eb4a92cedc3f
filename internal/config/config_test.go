package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/solvectl/internal/engine"
	"github.com/cwbudde/solvectl/internal/solve"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

const yamlRunFile = `
run:
  base_path: out
  model_export: model.yaml
  solution_export: solution.json
  progress_interval: 5
  iteration_limit: 40
  time_limit: 1500ms
problem:
  name: constrained-sphere
  objective: sphere
  dimension: 2
  lower: -5
  upper: 5
  target: 0.01
  constraints:
    - coefficients: [1, 1]
      bound: 3
  seed: 9
policy:
  rounds: 6
  patience: 2
  threshold: 0.01
  deadline: 30s
  trace: true
`

const hclRunFile = `
run {
  base_path       = "${file_dir}/artifacts"
  params_export   = "params.yaml"
  iteration_limit = 25
}

problem {
  name         = "linear-3d"
  objective    = "linear"
  dimension    = 3
  lower        = -1
  upper        = 1
  coefficients = [1, 2, 3]

  constraint {
    coefficients = [1, 0, 0]
    bound        = 0.5
  }

  constraint {
    coefficients = [0, 1, 0]
    bound        = 0.25
  }
}

policy {
  rounds = 3
}
`

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", yamlRunFile)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantBase := filepath.Join(filepath.Dir(path), "out")
	if f.Run.BasePath != wantBase {
		t.Errorf("expected base path %s, got %s", wantBase, f.Run.BasePath)
	}
	if f.Dir() != filepath.Dir(path) {
		t.Errorf("unexpected dir %s", f.Dir())
	}

	p := f.ToProblem()
	if p.Objective != engine.ObjectiveSphere || p.Dimension != 2 || p.Seed != 9 {
		t.Errorf("unexpected problem %+v", p)
	}
	if p.Target == nil || *p.Target != 0.01 {
		t.Errorf("expected target 0.01, got %v", p.Target)
	}
	if len(p.Constraints) != 1 || p.Constraints[0].Bound != 3 {
		t.Errorf("unexpected constraints %+v", p.Constraints)
	}

	if f.Policy == nil || f.Policy.Rounds != 6 || !f.Policy.Trace {
		t.Errorf("unexpected policy %+v", f.Policy)
	}
	if f.Policy.DeadlineDuration() != 30*time.Second {
		t.Errorf("expected 30s deadline, got %s", f.Policy.DeadlineDuration())
	}
}

func TestLoadHCL(t *testing.T) {
	path := writeFile(t, "run.hcl", hclRunFile)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantBase := filepath.Join(filepath.Dir(path), "artifacts")
	if f.Run.BasePath != wantBase {
		t.Errorf("expected interpolated base path %s, got %s", wantBase, f.Run.BasePath)
	}

	p := f.ToProblem()
	if p.Objective != engine.ObjectiveLinear || len(p.Coefficients) != 3 || p.Coefficients[2] != 3 {
		t.Errorf("unexpected problem %+v", p)
	}
	if len(p.Constraints) != 2 || p.Constraints[1].Bound != 0.25 {
		t.Errorf("unexpected constraints %+v", p.Constraints)
	}
	if f.Policy.Rounds != 3 {
		t.Errorf("expected 3 rounds, got %d", f.Policy.Rounds)
	}
	if _, err := engine.New(p); err != nil {
		t.Errorf("HCL problem should build an engine: %v", err)
	}
}

func TestToConfig(t *testing.T) {
	f, err := Load(writeFile(t, "run.yaml", yamlRunFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg, err := f.ToConfig("/unused")
	if err != nil {
		t.Fatalf("ToConfig failed: %v", err)
	}
	snap, err := solve.NewSnapshot(cfg)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	if snap.BasePath() != f.Run.BasePath {
		t.Errorf("expected base path %s, got %s", f.Run.BasePath, snap.BasePath())
	}
	if model, ok := snap.ModelExportPath(); !ok || model != filepath.Join(f.Run.BasePath, "model.yaml") {
		t.Errorf("unexpected model export path %q", model)
	}
	if _, ok := snap.ParamsExportPath(); ok {
		t.Error("params export should be unset")
	}
	if snap.ProgressInterval() != 5 {
		t.Errorf("expected progress interval 5, got %d", snap.ProgressInterval())
	}
	if limit, ok := snap.IterationLimit(); !ok || limit != 40 {
		t.Errorf("expected iteration limit 40, got %d", limit)
	}
	if limit, ok := snap.TimeLimit(); !ok || limit != 1500*time.Millisecond {
		t.Errorf("expected 1.5s time limit, got %s", limit)
	}
}

func TestToConfigWithoutRunBlock(t *testing.T) {
	f := &File{Problem: ProblemBlock{Objective: "sphere"}}
	base := t.TempDir()

	cfg, err := f.ToConfig(base)
	if err != nil {
		t.Fatalf("ToConfig failed: %v", err)
	}
	snap, err := solve.NewSnapshot(cfg)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	if snap.BasePath() != base || snap.ProgressInterval() != solve.DefaultProgressInterval {
		t.Errorf("unexpected defaults: base=%s interval=%d", snap.BasePath(), snap.ProgressInterval())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		field   string
	}{
		{"unknown extension", "run.toml", "x = 1", "path"},
		{"missing objective", "run.yaml", "problem:\n  dimension: 2\n", "problem.objective"},
		{"bad time limit", "run.yaml", "run:\n  time_limit: soon\nproblem:\n  objective: sphere\n", "run.time_limit"},
		{"negative rounds", "run.yaml", "problem:\n  objective: sphere\npolicy:\n  rounds: -1\n", "policy.rounds"},
		{"zero deadline", "run.yaml", "problem:\n  objective: sphere\npolicy:\n  deadline: 0s\n", "policy.deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	_, err := Load(writeFile(t, "run.yml", ""))
	if !errors.Is(err, ErrConfigEmpty) {
		t.Fatalf("expected ErrConfigEmpty, got %v", err)
	}
}

func TestLoadRejectsUnknownYAMLFields(t *testing.T) {
	_, err := Load(writeFile(t, "run.yaml", "problem:\n  objective: sphere\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadRejectsMalformedHCL(t *testing.T) {
	_, err := Load(writeFile(t, "run.hcl", "problem {\n  objective = \n}\n"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
}
