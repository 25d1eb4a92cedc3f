package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/solvectl/internal/config"
	"github.com/cwbudde/solvectl/internal/solve"
	"github.com/cwbudde/solvectl/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newRecord(id string, started time.Time) *store.RunRecord {
	return &store.RunRecord{RunID: id, StartTime: started, EndTime: started, Outcome: store.OutcomeSuccess}
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	records := []*store.RunRecord{
		newRecord("run1", now.AddDate(0, 0, -10)),
		newRecord("run2", now.AddDate(0, 0, -5)),
		newRecord("run3", now.AddDate(0, 0, -1)),
		newRecord("run4", now.AddDate(0, 0, -30)),
	}

	toDelete := selectRunsForDeletion(records, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	ids := map[string]bool{}
	for _, r := range toDelete {
		ids[r.RunID] = true
	}
	if !ids["run1"] || !ids["run4"] {
		t.Errorf("Expected run1 and run4 to be selected, got %v", ids)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	records := []*store.RunRecord{
		newRecord("run1", now.AddDate(0, 0, -10)),
		newRecord("run2", now.AddDate(0, 0, -5)),
		newRecord("run3", now.AddDate(0, 0, -1)),
		newRecord("run4", now.AddDate(0, 0, -30)),
	}

	toDelete := selectRunsForDeletion(records, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	for _, r := range toDelete {
		if r.RunID == "run2" || r.RunID == "run3" {
			t.Errorf("Newest runs should be kept, %s selected", r.RunID)
		}
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	records := []*store.RunRecord{
		newRecord("run1", now.AddDate(0, 0, -10)),
		newRecord("run2", now.AddDate(0, 0, -5)),
		newRecord("run3", now.AddDate(0, 0, -1)),
	}

	// run1 matches both rules and must appear once.
	toDelete := selectRunsForDeletion(records, 1, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}

	size, err := getDirSize(dir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size != 150 {
		t.Errorf("Expected 150 bytes, got %d", size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.bytes, got, tt.expected)
		}
	}
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome store.Outcome
		reason  string
	}{
		{"success", nil, store.OutcomeSuccess, ""},
		{"infeasible", &solve.Failure{Reason: solve.ReasonInfeasible, Iteration: 2}, store.OutcomeFailure, "infeasible"},
		{"wrapped interrupted", fmt.Errorf("run: %w", solve.ErrInterrupted), store.OutcomeFailure, "interrupted"},
		{"engine error", &solve.EngineCallError{Op: solve.OpSolve, Err: errors.New("boom")}, store.OutcomeError, ""},
		{"precondition", &solve.PreconditionError{}, store.OutcomeError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, reason := classifyOutcome(tt.err)
			if outcome != tt.outcome || reason != tt.reason {
				t.Errorf("got (%s, %q), want (%s, %q)", outcome, reason, tt.outcome, tt.reason)
			}
		})
	}
}

func TestPolicyBlockOverride(t *testing.T) {
	if policyBlock(nil, nil) != nil {
		t.Error("no block and no override should yield nil")
	}

	seven := 7
	orig := &config.PolicyBlock{Rounds: 3, Patience: 2}
	p := policyBlock(orig, &seven)
	if p.Rounds != 7 || p.Patience != 2 {
		t.Errorf("unexpected block %+v", p)
	}
	if orig.Rounds != 3 {
		t.Error("override must not mutate the run file's block")
	}
}

func TestBuildDelegates(t *testing.T) {
	delegates, desc := buildDelegates(&config.PolicyBlock{
		Rounds:   4,
		Patience: 2,
		Deadline: "1m",
		Trace:    true,
	}, discardLogger())

	if len(delegates) != 3 {
		t.Errorf("expected 3 delegates, got %d", len(delegates))
	}
	if desc != "deadline=1m0s,rounds=4,convergence=2@0.001,trace" {
		t.Errorf("unexpected description %q", desc)
	}

	if d, desc := buildDelegates(nil, discardLogger()); d != nil || desc != "" {
		t.Error("nil block should yield no delegates")
	}
}

const sphereRunFile = `
run:
  iteration_limit: 20
problem:
  name: sphere-2d
  objective: sphere
  dimension: 2
  lower: -5
  upper: 5
  seed: 3
policy:
  rounds: 3
  trace: true
`

const infeasibleRunFile = `
problem:
  name: impossible
  objective: sphere
  dimension: 2
  lower: -1
  upper: 1
  iterations: 10
  constraints:
    - coefficients: [1, 1]
      bound: -10
`

func writeRunFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write run file: %v", err)
	}
	return path
}

func TestExecuteRun_RecordsSuccess(t *testing.T) {
	dir := t.TempDir()
	opts := runOptions{
		ConfigPath: writeRunFile(t, sphereRunFile),
		StoreDir:   dir,
		IndexPath:  filepath.Join(dir, "index.db"),
	}

	var out bytes.Buffer
	record, err := executeRun(context.Background(), opts, discardLogger(), &out)
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}

	if record.Outcome != store.OutcomeSuccess || record.Status != "feasible" {
		t.Errorf("unexpected outcome %s / %s", record.Outcome, record.Status)
	}
	// No target: the first solve already leaves the engine feasible.
	if record.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", record.Iterations)
	}
	if record.BestObjective == nil || len(record.BestPosition) != 2 {
		t.Errorf("expected a best point, got %v %v", record.BestObjective, record.BestPosition)
	}
	if record.Settings.IterationLimit != 20 || record.Settings.Policies != "rounds=3,trace" {
		t.Errorf("unexpected settings %+v", record.Settings)
	}
	if !strings.Contains(out.String(), record.RunID) {
		t.Errorf("summary should name the run, got %q", out.String())
	}

	fsStore, _ := store.NewFSStore(dir)
	loaded, err := fsStore.LoadRun(record.RunID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Outcome != store.OutcomeSuccess {
		t.Errorf("stored outcome %s", loaded.Outcome)
	}

	reader, err := store.NewTraceReader(dir, record.RunID)
	if err != nil {
		t.Fatalf("trace should exist: %v", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil || len(entries) != 1 {
		t.Errorf("expected 1 trace entry, got %d (%v)", len(entries), err)
	}

	idx, err := store.OpenIndex(opts.IndexPath)
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	defer idx.Close()
	infos, err := idx.List(store.IndexFilter{})
	if err != nil || len(infos) != 1 || infos[0].RunID != record.RunID {
		t.Errorf("expected the run in the index, got %v (%v)", infos, err)
	}
}

func TestExecuteRun_RecordsFailure(t *testing.T) {
	dir := t.TempDir()
	opts := runOptions{
		ConfigPath: writeRunFile(t, infeasibleRunFile),
		StoreDir:   dir,
	}

	record, err := executeRun(context.Background(), opts, discardLogger(), io.Discard)
	if !errors.Is(err, solve.ErrInfeasible) {
		t.Fatalf("expected infeasible, got %v", err)
	}
	if record == nil || record.Outcome != store.OutcomeFailure || record.Reason != "infeasible" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Iterations != 1 {
		t.Errorf("expected failure at iteration 1, got %d", record.Iterations)
	}
}

func TestExecuteRun_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	opts := runOptions{
		ConfigPath: writeRunFile(t, sphereRunFile),
		StoreDir:   dir,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, err := executeRun(ctx, opts, discardLogger(), io.Discard)
	if !errors.Is(err, solve.ErrInterrupted) {
		t.Fatalf("expected interrupted, got %v", err)
	}
	if record.Reason != "interrupted" || record.Iterations != 1 {
		t.Errorf("unexpected record %+v", record)
	}
}

func TestExecuteRun_SeedOverride(t *testing.T) {
	dir := t.TempDir()
	s := int64(99)
	one := 1
	opts := runOptions{
		ConfigPath: writeRunFile(t, sphereRunFile),
		StoreDir:   dir,
		Rounds:     &one,
		Seed:       &s,
	}

	record, err := executeRun(context.Background(), opts, discardLogger(), io.Discard)
	if err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}
	if record.Settings.Seed != 99 || record.Iterations != 1 {
		t.Errorf("overrides not applied: %+v", record)
	}
}

func TestExecuteRun_RejectsNonPositiveOverrides(t *testing.T) {
	intPtr := func(n int) *int { return &n }
	durPtr := func(d time.Duration) *time.Duration { return &d }

	tests := []struct {
		name  string
		opts  runOptions
		field string
	}{
		{"iteration limit", runOptions{IterationLimit: intPtr(-3)}, "iterationLimit"},
		{"zero iteration limit", runOptions{IterationLimit: intPtr(0)}, "iterationLimit"},
		{"time limit", runOptions{TimeLimit: durPtr(-time.Second)}, "timeLimit"},
		{"progress interval", runOptions{ProgressInterval: intPtr(-2)}, "progressInterval"},
		{"zero rounds", runOptions{Rounds: intPtr(0)}, "rounds"},
		{"negative rounds", runOptions{Rounds: intPtr(-1)}, "rounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := tt.opts
			opts.ConfigPath = writeRunFile(t, sphereRunFile)
			opts.StoreDir = dir

			record, err := executeRun(context.Background(), opts, discardLogger(), io.Discard)
			if record != nil {
				t.Errorf("expected no record, got %+v", record)
			}
			var cfgErr *solve.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected a ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}

			fsStore, err := store.NewFSStore(dir)
			if err != nil {
				t.Fatalf("Failed to create store: %v", err)
			}
			runs, err := fsStore.ListRuns()
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(runs) != 0 {
				t.Errorf("expected no saved runs, got %d", len(runs))
			}
		})
	}
}

func TestExecuteRun_BadConfig(t *testing.T) {
	record, err := executeRun(context.Background(), runOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		StoreDir:   t.TempDir(),
	}, discardLogger(), io.Discard)
	if err == nil || record != nil {
		t.Fatalf("expected a setup error, got %v / %+v", err, record)
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	originalStore, originalIndex := storeDir, indexPath
	storeDir = t.TempDir()
	indexPath = ""
	defer func() { storeDir, indexPath = originalStore, originalIndex }()

	if err := runListRuns(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunsListCommand_RejectsUnknownOutcome(t *testing.T) {
	originalOutcome := listOutcome
	listOutcome = "maybe"
	defer func() { listOutcome = originalOutcome }()

	if err := runListRuns(nil, nil); err == nil {
		t.Error("Expected error for an unknown outcome")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	originalStore := storeDir
	storeDir = t.TempDir()
	defer func() { storeDir = originalStore }()

	keepLast = 0
	olderThanDays = 0

	if err := runCleanRuns(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	dir := t.TempDir()
	fsStore, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	old := newRecord(store.NewRunID(), time.Now().AddDate(0, 0, -30))
	fresh := newRecord(store.NewRunID(), time.Now())
	for _, r := range []*store.RunRecord{old, fresh} {
		if err := fsStore.SaveRun(r); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	originalStore, originalIndex := storeDir, indexPath
	storeDir = dir
	indexPath = ""
	defer func() { storeDir, indexPath = originalStore, originalIndex }()

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() { olderThanDays = 0; forceClean = false }()

	if err := runCleanRuns(nil, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := fsStore.LoadRun(old.RunID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old run should be deleted, got %v", err)
	}
	if _, err := fsStore.LoadRun(fresh.RunID); err != nil {
		t.Errorf("fresh run should be kept: %v", err)
	}
}

func TestRunsReindexAndShow(t *testing.T) {
	dir := t.TempDir()
	fsStore, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	r := newRecord(store.NewRunID(), time.Now())
	if err := fsStore.SaveRun(r); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	originalStore, originalIndex := storeDir, indexPath
	storeDir = dir
	indexPath = ""
	defer func() { storeDir, indexPath = originalStore, originalIndex }()

	if err := runReindex(nil, nil); err != nil {
		t.Fatalf("reindex failed: %v", err)
	}
	if err := runShowRun(nil, []string{r.RunID}); err != nil {
		t.Errorf("show failed: %v", err)
	}
	if err := runShowRun(nil, []string{store.NewRunID()}); err == nil {
		t.Error("show of an unknown run should fail")
	}
}

func TestRunsShowCommand_TraceErrors(t *testing.T) {
	dir := t.TempDir()
	fsStore, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	r := newRecord(store.NewRunID(), time.Now())
	if err := fsStore.SaveRun(r); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	originalStore := storeDir
	storeDir = dir
	defer func() { storeDir = originalStore }()

	// No trace file: shown without a trace line.
	if err := runShowRun(nil, []string{r.RunID}); err != nil {
		t.Fatalf("missing trace should not fail show: %v", err)
	}

	// A trace that exists but cannot be opened is reported.
	tracePath := store.TracePath(dir, r.RunID)
	if err := os.Symlink(filepath.Base(tracePath), tracePath); err != nil {
		t.Fatalf("Failed to create symlink loop: %v", err)
	}
	if err := runShowRun(nil, []string{r.RunID}); err == nil {
		t.Error("unreadable trace should fail show")
	}
}
