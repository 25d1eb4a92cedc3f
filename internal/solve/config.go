package solve

import (
	"path/filepath"
	"time"
)

// DefaultProgressInterval is the number of iterations between full
// telemetry dumps when none is configured.
const DefaultProgressInterval = 10

// Config is the caller-side, mutable run configuration. Build one with
// NewConfig and the setters, then hand it to NewController, which copies it.
// Changing a Config afterwards does not affect a controller built from it.
type Config struct {
	basePath           string
	modelExportPath    string
	paramsExportPath   string
	solutionExportPath string
	progressInterval   int

	iterationLimit    int
	hasIterationLimit bool
	timeLimit         time.Duration
	hasTimeLimit      bool

	delegate Delegate
}

// NewConfig returns a Config with default settings.
func NewConfig() *Config {
	return &Config{progressInterval: DefaultProgressInterval}
}

// SetBasePath sets the absolute directory relative export paths resolve against.
func (c *Config) SetBasePath(path string) *Config {
	c.basePath = path
	return c
}

func (c *Config) SetModelExportPath(path string) *Config {
	c.modelExportPath = path
	return c
}

func (c *Config) SetParamsExportPath(path string) *Config {
	c.paramsExportPath = path
	return c
}

func (c *Config) SetSolutionExportPath(path string) *Config {
	c.solutionExportPath = path
	return c
}

// SetProgressInterval sets how many iterations pass between full telemetry dumps.
func (c *Config) SetProgressInterval(n int) *Config {
	c.progressInterval = n
	return c
}

// SetIterationLimit sets the engine iteration limit applied before each solve.
func (c *Config) SetIterationLimit(n int) *Config {
	c.iterationLimit = n
	c.hasIterationLimit = true
	return c
}

// SetTimeLimit sets the engine time limit applied before each solve.
func (c *Config) SetTimeLimit(d time.Duration) *Config {
	c.timeLimit = d
	c.hasTimeLimit = true
	return c
}

// SetDelegate sets the continuation delegate. A nil delegate restores the
// single-iteration default.
func (c *Config) SetDelegate(d Delegate) *Config {
	c.delegate = d
	return c
}

// Snapshot is the immutable copy of a Config used by one run.
type Snapshot struct {
	basePath           string
	modelExportPath    string
	paramsExportPath   string
	solutionExportPath string
	progressInterval   int

	iterationLimit    int
	hasIterationLimit bool
	timeLimit         time.Duration
	hasTimeLimit      bool

	delegate Delegate
}

// NewSnapshot validates cfg and copies it field by field.
func NewSnapshot(cfg *Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, &ConfigError{Field: "config", Reason: "cannot be nil"}
	}
	if cfg.basePath == "" {
		return Snapshot{}, &ConfigError{Field: "basePath", Reason: "is required"}
	}
	if !filepath.IsAbs(cfg.basePath) {
		return Snapshot{}, &ConfigError{Field: "basePath", Reason: "must be absolute"}
	}
	if cfg.progressInterval <= 0 {
		return Snapshot{}, &ConfigError{Field: "progressInterval", Reason: "must be positive"}
	}
	if cfg.hasIterationLimit && cfg.iterationLimit <= 0 {
		return Snapshot{}, &ConfigError{Field: "iterationLimit", Reason: "must be positive"}
	}
	if cfg.hasTimeLimit && cfg.timeLimit <= 0 {
		return Snapshot{}, &ConfigError{Field: "timeLimit", Reason: "must be positive"}
	}

	return Snapshot{
		basePath:           filepath.Clean(cfg.basePath),
		modelExportPath:    cfg.modelExportPath,
		paramsExportPath:   cfg.paramsExportPath,
		solutionExportPath: cfg.solutionExportPath,
		progressInterval:   cfg.progressInterval,
		iterationLimit:     cfg.iterationLimit,
		hasIterationLimit:  cfg.hasIterationLimit,
		timeLimit:          cfg.timeLimit,
		hasTimeLimit:       cfg.hasTimeLimit,
		delegate:           cfg.delegate,
	}, nil
}

// Config returns a new Config holding the same settings, so a snapshot can
// be copy-constructed from another snapshot.
func (s Snapshot) Config() *Config {
	return &Config{
		basePath:           s.basePath,
		modelExportPath:    s.modelExportPath,
		paramsExportPath:   s.paramsExportPath,
		solutionExportPath: s.solutionExportPath,
		progressInterval:   s.progressInterval,
		iterationLimit:     s.iterationLimit,
		hasIterationLimit:  s.hasIterationLimit,
		timeLimit:          s.timeLimit,
		hasTimeLimit:       s.hasTimeLimit,
		delegate:           s.delegate,
	}
}

func (s Snapshot) BasePath() string {
	return s.basePath
}

// ModelExportPath returns the resolved model export path, if configured.
func (s Snapshot) ModelExportPath() (string, bool) {
	return s.resolve(s.modelExportPath)
}

// ParamsExportPath returns the resolved parameter export path, if configured.
func (s Snapshot) ParamsExportPath() (string, bool) {
	return s.resolve(s.paramsExportPath)
}

// SolutionExportPath returns the resolved solution export path, if configured.
func (s Snapshot) SolutionExportPath() (string, bool) {
	return s.resolve(s.solutionExportPath)
}

func (s Snapshot) ProgressInterval() int {
	return s.progressInterval
}

func (s Snapshot) IterationLimit() (int, bool) {
	return s.iterationLimit, s.hasIterationLimit
}

func (s Snapshot) TimeLimit() (time.Duration, bool) {
	return s.timeLimit, s.hasTimeLimit
}

func (s Snapshot) Delegate() Delegate {
	return s.delegate
}

func (s Snapshot) resolve(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if filepath.IsAbs(path) {
		return path, true
	}
	return filepath.Join(s.basePath, path), true
}
