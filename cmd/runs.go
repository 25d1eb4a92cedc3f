package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/solvectl/internal/store"
	"github.com/spf13/cobra"
)

var (
	listOutcome   string
	listProblem   string
	listLimit     int
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and manage recorded runs",
	Long: `Inspect and manage recorded runs. Listings come from the SQLite index;
run records under <store>/runs are authoritative and the index can be
rebuilt from them at any time.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Long:  `Display indexed runs with outcome, final status, iteration count and best objective, newest first.`,
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run record",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete old runs based on retention policy.
You can keep the last N runs or delete runs started more than N days ago.`,
	RunE: runCleanRuns,
}

var reindexRunsCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the run index from the stored records",
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)
	runsCmd.AddCommand(reindexRunsCmd)

	listRunsCmd.Flags().StringVar(&listOutcome, "outcome", "", "Only show runs with this outcome (success, failure, error)")
	listRunsCmd.Flags().StringVar(&listProblem, "problem", "", "Only show runs of this problem")
	listRunsCmd.Flags().IntVar(&listLimit, "limit", 0, "Show at most N runs (0 = all)")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	switch store.Outcome(listOutcome) {
	case "", store.OutcomeSuccess, store.OutcomeFailure, store.OutcomeError:
	default:
		return fmt.Errorf("unknown outcome %q", listOutcome)
	}

	idx, err := store.OpenIndex(resolvedIndexPath())
	if err != nil {
		return fmt.Errorf("failed to open run index: %w", err)
	}
	defer idx.Close()

	infos, err := idx.List(store.IndexFilter{
		Outcome: store.Outcome(listOutcome),
		Problem: listProblem,
		Limit:   listLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tPROBLEM\tOUTCOME\tSTATUS\tITERATIONS\tBEST\tFINISHED")
	fmt.Fprintln(w, "------\t-------\t-------\t------\t----------\t----\t--------")

	for _, info := range infos {
		best := "-"
		if info.BestObjective != nil {
			best = fmt.Sprintf("%.6g", *info.BestObjective)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(info.RunID),
			info.Problem,
			info.Outcome,
			info.Status,
			info.Iterations,
			best,
			info.EndTime.Local().Format("2006-01-02 15:04:05"),
		)
	}

	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	fsStore, err := store.NewFSStore(storeDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	record, err := fsStore.LoadRun(args[0])
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	printRunSummary(os.Stdout, record)
	fmt.Printf("Started:    %s\n", record.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Base path:  %s\n", record.Settings.BasePath)
	if record.Settings.Policies != "" {
		fmt.Printf("Policies:   %s\n", record.Settings.Policies)
	}
	if len(record.BestPosition) > 0 {
		fmt.Printf("Position:   %v\n", record.BestPosition)
	}

	reader, err := store.NewTraceReader(fsStore.BaseDir(), record.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	fmt.Printf("Trace:      %d entries\n", len(entries))
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	fsStore, err := store.NewFSStore(storeDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	records, err := fsStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(records, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No runs match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, r := range toDelete {
		size := "unknown"
		if n, err := getDirSize(fsStore.RunDir(r.RunID)); err == nil {
			size = formatBytes(n)
		}
		fmt.Printf("  - %s (%s, %s, %s)\n",
			shortID(r.RunID),
			r.Outcome,
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			size,
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	log := currentLogger()
	idx, err := store.OpenIndex(resolvedIndexPath())
	if err != nil {
		log.Warn("Failed to open run index, index rows will be stale", "error", err)
		idx = nil
	} else {
		defer idx.Close()
	}

	deleted := 0
	failed := 0
	for _, r := range toDelete {
		if err := fsStore.DeleteRun(r.RunID); err != nil {
			log.Error("Failed to delete run", "run_id", r.RunID, "error", err)
			failed++
			continue
		}
		if idx != nil {
			if err := idx.Delete(r.RunID); err != nil {
				log.Warn("Failed to remove run from index", "run_id", r.RunID, "error", err)
			}
		}
		log.Info("Deleted run", "run_id", r.RunID)
		deleted++
	}

	fmt.Printf("\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	fsStore, err := store.NewFSStore(storeDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	idx, err := store.OpenIndex(resolvedIndexPath())
	if err != nil {
		return fmt.Errorf("failed to open run index: %w", err)
	}
	defer idx.Close()

	n, err := idx.Rebuild(fsStore)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	fmt.Printf("Indexed %d run(s).\n", n)
	return nil
}

// selectRunsForDeletion returns the runs older than olderThanDays plus,
// when keepLast is set, every run beyond the keepLast most recent ones.
// Each run appears at most once.
func selectRunsForDeletion(records []*store.RunRecord, keepLast int, olderThanDays int) []*store.RunRecord {
	var toDelete []*store.RunRecord
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, r := range records {
			if r.StartTime.Before(cutoff) {
				toDelete = append(toDelete, r)
				selected[r.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(records) > keepLast {
		sorted := make([]*store.RunRecord, len(records))
		copy(sorted, records)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].StartTime.After(sorted[j].StartTime)
		})

		for _, r := range sorted[keepLast:] {
			if !selected[r.RunID] {
				toDelete = append(toDelete, r)
				selected[r.RunID] = true
			}
		}
	}

	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
