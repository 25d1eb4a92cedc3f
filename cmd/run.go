package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cwbudde/solvectl/internal/config"
	"github.com/cwbudde/solvectl/internal/engine"
	"github.com/cwbudde/solvectl/internal/policy"
	"github.com/cwbudde/solvectl/internal/solve"
	"github.com/cwbudde/solvectl/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath       string
	iterationLimit   int
	timeLimit        time.Duration
	rounds           int
	seed             int64
	progressInterval int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a run file",
	Long: `Loads a YAML or HCL run file, builds the engine and its continuation
policies and executes the solve loop. The run record is written to the store
and indexed. Ctrl-C stops the run after the current solve.`,
	RunE: runExecute,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Run file path, .yaml or .hcl (required)")
	runCmd.Flags().IntVar(&iterationLimit, "iteration-limit", 0, "Override the per-solve iteration limit")
	runCmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Override the per-solve time limit")
	runCmd.Flags().IntVar(&rounds, "rounds", 0, "Override the maximum number of solve attempts")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Override the random seed")
	runCmd.Flags().IntVar(&progressInterval, "progress-interval", 0, "Override how often full engine state is logged")

	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

// runOptions carries everything executeRun needs. Nil overrides leave the
// run file's settings alone; set ones are applied as given and validated
// with the rest of the controller configuration.
type runOptions struct {
	ConfigPath       string
	StoreDir         string
	IndexPath        string
	IterationLimit   *int
	TimeLimit        *time.Duration
	Rounds           *int
	Seed             *int64
	ProgressInterval *int
}

func runExecute(cmd *cobra.Command, args []string) error {
	opts := runOptions{
		ConfigPath: configPath,
		StoreDir:   storeDir,
		IndexPath:  resolvedIndexPath(),
	}
	if cmd != nil {
		flags := cmd.Flags()
		if flags.Changed("iteration-limit") {
			opts.IterationLimit = &iterationLimit
		}
		if flags.Changed("time-limit") {
			opts.TimeLimit = &timeLimit
		}
		if flags.Changed("rounds") {
			opts.Rounds = &rounds
		}
		if flags.Changed("seed") {
			opts.Seed = &seed
		}
		if flags.Changed("progress-interval") {
			opts.ProgressInterval = &progressInterval
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := executeRun(ctx, opts, currentLogger(), os.Stdout)
	return err
}

// executeRun performs one controller execution and records it. The returned
// record is nil only when the run could not be set up. The error is the
// controller's result, so a recorded failure still returns non-nil.
func executeRun(ctx context.Context, opts runOptions, logger *slog.Logger, out io.Writer) (*store.RunRecord, error) {
	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load run file: %w", err)
	}

	problem := file.ToProblem()
	if opts.Seed != nil {
		problem.Seed = *opts.Seed
	}
	eng, err := engine.New(problem)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	problem = eng.Problem()

	base, err := filepath.Abs(opts.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	fsStore, err := store.NewFSStore(base)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	runID := store.NewRunID()

	cfg, err := file.ToConfig(fsStore.RunDir(runID))
	if err != nil {
		return nil, err
	}
	if opts.IterationLimit != nil {
		cfg.SetIterationLimit(*opts.IterationLimit)
	}
	if opts.TimeLimit != nil {
		cfg.SetTimeLimit(*opts.TimeLimit)
	}
	if opts.ProgressInterval != nil {
		cfg.SetProgressInterval(*opts.ProgressInterval)
	}
	if opts.Rounds != nil && *opts.Rounds <= 0 {
		return nil, &solve.ConfigError{Field: "rounds", Reason: "must be positive"}
	}

	pol := policyBlock(file.Policy, opts.Rounds)
	delegates, policies := buildDelegates(pol, logger)
	if len(delegates) > 0 {
		cfg.SetDelegate(policy.All(delegates...))
	}

	ctrl, err := solve.NewController(eng, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	var (
		lastIteration int
		traceWriter   *store.TraceWriter
		trace         *policy.Trace
	)
	if pol != nil && pol.Trace {
		traceWriter, err = store.NewTraceWriter(fsStore.BaseDir(), runID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		trace = policy.NewTrace(traceWriter, eng, logger)
	}
	ctrl.OnIteration(func(rec solve.IterationRecord) {
		lastIteration = rec.Iteration
		if trace != nil {
			trace.Observe(rec)
		}
	})

	record := store.NewRunRecord(runID, problem.Name, string(problem.Objective), runSettings(ctrl.Config(), problem, policies))

	logger.Info("Starting run",
		"run_id", runID,
		"problem", problem.Name,
		"objective", problem.Objective,
		"policies", policies)

	runErr := ctrl.Execute(ctx)

	if traceWriter != nil {
		if err := traceWriter.Close(); err != nil {
			logger.Warn("Failed to close trace", "run_id", runID, "error", err)
		}
	}

	record.EndTime = time.Now()
	record.Status = eng.Status().String()
	record.Iterations = lastIteration
	record.Outcome, record.Reason = classifyOutcome(runErr)
	if runErr != nil {
		record.Error = runErr.Error()
	}
	var failure *solve.Failure
	if errors.As(runErr, &failure) && failure.Iteration > record.Iterations {
		record.Iterations = failure.Iteration
	}
	if position, objective, ok := eng.Best(); ok && !math.IsInf(objective, 0) && !math.IsNaN(objective) {
		record.BestObjective = &objective
		record.BestPosition = position
	}

	if err := fsStore.SaveRun(record); err != nil {
		return record, fmt.Errorf("failed to save run record: %w", err)
	}
	indexRun(opts.IndexPath, record, logger)

	logger.Info("Run finished",
		"run_id", runID,
		"outcome", record.Outcome,
		"status", record.Status,
		"iterations", record.Iterations,
		"elapsed", record.Duration())

	printRunSummary(out, record)
	return record, runErr
}

// policyBlock applies the rounds override to the run file's policy block
// without mutating it.
func policyBlock(block *config.PolicyBlock, roundsOverride *int) *config.PolicyBlock {
	if block == nil && roundsOverride == nil {
		return nil
	}
	var p config.PolicyBlock
	if block != nil {
		p = *block
	}
	if roundsOverride != nil {
		p.Rounds = *roundsOverride
	}
	return &p
}

// buildDelegates turns a policy block into delegates, in the order they are
// consulted, plus a short description for the run record.
func buildDelegates(p *config.PolicyBlock, logger *slog.Logger) ([]solve.Delegate, string) {
	if p == nil {
		return nil, ""
	}

	var delegates []solve.Delegate
	var names []string

	if d := p.DeadlineDuration(); d > 0 {
		delegates = append(delegates, policy.NewDeadline(d, logger))
		names = append(names, "deadline="+d.String())
	}
	if p.Rounds > 0 {
		delegates = append(delegates, policy.Rounds{Max: p.Rounds})
		names = append(names, fmt.Sprintf("rounds=%d", p.Rounds))
	}
	if p.Patience > 0 {
		cc := policy.DefaultConvergenceConfig()
		cc.Patience = p.Patience
		if p.Threshold > 0 {
			cc.Threshold = p.Threshold
		}
		delegates = append(delegates, policy.NewConvergence(cc, logger))
		names = append(names, fmt.Sprintf("convergence=%d@%g", cc.Patience, cc.Threshold))
	}
	if p.Trace {
		names = append(names, "trace")
	}

	return delegates, strings.Join(names, ",")
}

func runSettings(snap solve.Snapshot, problem engine.Problem, policies string) store.RunSettings {
	settings := store.RunSettings{
		BasePath:         snap.BasePath(),
		ProgressInterval: snap.ProgressInterval(),
		Policies:         policies,
		Population:       problem.Population,
		Seed:             problem.Seed,
	}
	if n, ok := snap.IterationLimit(); ok {
		settings.IterationLimit = n
	}
	if d, ok := snap.TimeLimit(); ok {
		settings.TimeLimit = d.String()
	}
	return settings
}

// classifyOutcome maps a controller result onto the record outcome and,
// for failures, the reason name.
func classifyOutcome(err error) (store.Outcome, string) {
	if err == nil {
		return store.OutcomeSuccess, ""
	}
	var failure *solve.Failure
	if errors.As(err, &failure) {
		return store.OutcomeFailure, failure.Reason.String()
	}
	return store.OutcomeError, ""
}

// indexRun records the run in the SQLite index. The run record on disk is
// authoritative, so index errors are only logged.
func indexRun(path string, record *store.RunRecord, logger *slog.Logger) {
	if path == "" {
		return
	}
	idx, err := store.OpenIndex(path)
	if err != nil {
		logger.Warn("Failed to open run index", "path", path, "error", err)
		return
	}
	defer idx.Close()

	if err := idx.Upsert(record); err != nil {
		logger.Warn("Failed to index run", "run_id", record.RunID, "error", err)
	}
}

func printRunSummary(w io.Writer, r *store.RunRecord) {
	fmt.Fprintf(w, "Run:        %s\n", r.RunID)
	fmt.Fprintf(w, "Problem:    %s (%s)\n", r.Problem, r.Objective)
	switch r.Outcome {
	case store.OutcomeFailure:
		fmt.Fprintf(w, "Outcome:    %s (%s)\n", r.Outcome, r.Reason)
	default:
		fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	}
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	if r.BestObjective != nil {
		fmt.Fprintf(w, "Best:       %.6g\n", *r.BestObjective)
	}
	fmt.Fprintf(w, "Elapsed:    %s\n", r.Duration().Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
}
