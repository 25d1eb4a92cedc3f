package solve

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Exporter asks the engine to serialize the model, its parameters and the
// current solution to the paths configured in a Snapshot.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// ExportModel writes the model definition if a model export path is set.
func (x *Exporter) ExportModel(engine Engine, cfg Snapshot) error {
	path, ok := cfg.ModelExportPath()
	if !ok {
		return nil
	}
	return x.export("model", path, engine.ExportModel)
}

// ExportParams writes the parameter set if a params export path is set.
func (x *Exporter) ExportParams(engine Engine, cfg Snapshot) error {
	path, ok := cfg.ParamsExportPath()
	if !ok {
		return nil
	}
	return x.export("params", path, engine.ExportParams)
}

// ExportSolution writes the current best solution if a solution export
// path is set.
func (x *Exporter) ExportSolution(engine Engine, cfg Snapshot) error {
	path, ok := cfg.SolutionExportPath()
	if !ok {
		return nil
	}
	return x.export("solution", path, engine.ExportSolution)
}

func (x *Exporter) export(artifact, path string, write func(string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s export directory: %w", artifact, err)
	}
	if err := write(path); err != nil {
		return fmt.Errorf("failed to export %s: %w", artifact, err)
	}
	x.logger.Debug("Artifact exported", "artifact", artifact, "path", path)
	return nil
}
