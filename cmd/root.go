package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	logLevel  string
	logFormat string
	storeDir  string
	indexPath string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "solvectl",
	Short: "Drive an optimization engine through controlled solve attempts",
	Long: `solvectl runs a mayfly-backed optimization engine under an execution
controller: per-iteration limits, continuation policies, cooperative
cancellation, progress telemetry and a stable success/failure taxonomy.
Every run is recorded in a local store with a SQLite index.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(logLevel, logFormat, os.Stdout)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "./data", "Base directory for run records")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "SQLite run index path (default <store>/index.db)")
}

// newLogger builds a logger writing to w. Unknown levels fall back to info
// and unknown formats to JSON.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// resolvedIndexPath returns the index location for the current flags.
func resolvedIndexPath() string {
	if indexPath != "" {
		return indexPath
	}
	return filepath.Join(storeDir, "index.db")
}

// currentLogger returns the command logger, or the default logger when
// called outside a cobra run (tests).
func currentLogger() *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
