package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Model labels accepted by the *_model selectors.
var validModelLabels = map[string]bool{
	"m0": true, "m10": true, "m50": true,
}

// AnalysisConfig represents the root configuration of a re-analysis run.
// Every field is optional: the Get* accessors supply defaults for fields the
// JSON file omits, so partial configs are safe.
type AnalysisConfig struct {
	// Input tables
	SitesPath       *string `json:"sites_path,omitempty"`
	ExplorationPath *string `json:"exploration_path,omitempty"`
	PerceptionPath  *string `json:"perception_path,omitempty"`
	DissectionPath  *string `json:"dissection_path,omitempty"`

	// Outputs
	OutputDir   *string `json:"output_dir,omitempty"`
	ArchivePath *string `json:"archive_path,omitempty"` // empty disables the SQLite archive

	// Join behaviour
	StrictJoin *bool `json:"strict_join,omitempty"`

	// Simulation
	Seed          *uint64  `json:"seed,omitempty"`
	Draws         *int     `json:"draws,omitempty"`
	IntervalWidth *float64 `json:"interval_width,omitempty"`
	GridPoints    *int     `json:"grid_points,omitempty"`

	// Correlogram
	CorrelogramIncrement   *float64 `json:"correlogram_increment,omitempty"`    // metres
	CorrelogramMaxDistance *float64 `json:"correlogram_max_distance,omitempty"` // metres, 0 = all pairs
	Permutations           *int     `json:"permutations,omitempty"`

	// Dissection power-law fit
	NLSStart         *NLSStart `json:"nls_start,omitempty"`
	NLSMaxIterations *int      `json:"nls_max_iterations,omitempty"`

	// Derived-quantity reference points
	ReferenceDistance *float64 `json:"reference_distance,omitempty"` // perception, cm
	ReferenceSize     *float64 `json:"reference_size,omitempty"`     // dissection, scaled diameter

	// Which model of each family feeds the plots
	ExplorationModel *string `json:"exploration_model,omitempty"`
	PerceptionModel  *string `json:"perception_model,omitempty"`
	DissectionModel  *string `json:"dissection_model,omitempty"`

	ParallelFits *bool `json:"parallel_fits,omitempty"`
}

// NLSStart is the declared starting point of the dissection power-law fit.
// The prefactor is A0 + A1*u and the exponent B0 + B1*u; Delta is the
// variance power. Baseline models ignore A1 and B1.
type NLSStart struct {
	A0    float64 `json:"a0"`
	A1    float64 `json:"a1"`
	B0    float64 `json:"b0"`
	B1    float64 `json:"b1"`
	Delta float64 `json:"delta"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyAnalysisConfig returns a config with all fields nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field populated with its
// default, mirroring config/analysis.defaults.json.
func DefaultAnalysisConfig() *AnalysisConfig {
	c := EmptyAnalysisConfig()
	start := c.GetNLSStart()
	return &AnalysisConfig{
		SitesPath:              ptrString(c.GetSitesPath()),
		ExplorationPath:        ptrString(c.GetExplorationPath()),
		PerceptionPath:         ptrString(c.GetPerceptionPath()),
		DissectionPath:         ptrString(c.GetDissectionPath()),
		OutputDir:              ptrString(c.GetOutputDir()),
		ArchivePath:            ptrString(c.GetArchivePath()),
		StrictJoin:             ptrBool(c.GetStrictJoin()),
		Seed:                   ptrUint64(c.GetSeed()),
		Draws:                  ptrInt(c.GetDraws()),
		IntervalWidth:          ptrFloat64(c.GetIntervalWidth()),
		GridPoints:             ptrInt(c.GetGridPoints()),
		CorrelogramIncrement:   ptrFloat64(c.GetCorrelogramIncrement()),
		CorrelogramMaxDistance: ptrFloat64(c.GetCorrelogramMaxDistance()),
		Permutations:           ptrInt(c.GetPermutations()),
		NLSStart:               &start,
		NLSMaxIterations:       ptrInt(c.GetNLSMaxIterations()),
		ReferenceDistance:      ptrFloat64(c.GetReferenceDistance()),
		ReferenceSize:          ptrFloat64(c.GetReferenceSize()),
		ExplorationModel:       ptrString(c.GetExplorationModel()),
		PerceptionModel:        ptrString(c.GetPerceptionModel()),
		DissectionModel:        ptrString(c.GetDissectionModel()),
		ParallelFits:           ptrBool(c.GetParallelFits()),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.Draws != nil && *c.Draws < 100 {
		return fmt.Errorf("draws must be at least 100, got %d", *c.Draws)
	}
	if c.IntervalWidth != nil {
		if *c.IntervalWidth <= 0 || *c.IntervalWidth >= 1 {
			return fmt.Errorf("interval_width must be between 0 and 1, got %f", *c.IntervalWidth)
		}
	}
	if c.GridPoints != nil && *c.GridPoints < 2 {
		return fmt.Errorf("grid_points must be at least 2, got %d", *c.GridPoints)
	}
	if c.CorrelogramIncrement != nil && *c.CorrelogramIncrement <= 0 {
		return fmt.Errorf("correlogram_increment must be positive, got %f", *c.CorrelogramIncrement)
	}
	if c.CorrelogramMaxDistance != nil && *c.CorrelogramMaxDistance < 0 {
		return fmt.Errorf("correlogram_max_distance must be non-negative, got %f", *c.CorrelogramMaxDistance)
	}
	if c.Permutations != nil && *c.Permutations < 1 {
		return fmt.Errorf("permutations must be positive, got %d", *c.Permutations)
	}
	if c.NLSMaxIterations != nil && *c.NLSMaxIterations < 1 {
		return fmt.Errorf("nls_max_iterations must be positive, got %d", *c.NLSMaxIterations)
	}
	if c.ReferenceDistance != nil && *c.ReferenceDistance < 0 {
		return fmt.Errorf("reference_distance must be non-negative, got %f", *c.ReferenceDistance)
	}
	if c.ReferenceSize != nil && *c.ReferenceSize <= 0 {
		return fmt.Errorf("reference_size must be positive, got %f", *c.ReferenceSize)
	}
	for name, label := range map[string]*string{
		"exploration_model": c.ExplorationModel,
		"perception_model":  c.PerceptionModel,
		"dissection_model":  c.DissectionModel,
	} {
		if label != nil && !validModelLabels[*label] {
			return fmt.Errorf("%s must be one of m0, m10, m50, got %q", name, *label)
		}
	}
	return nil
}

// GetSitesPath returns the site GeoJSON path or the default.
func (c *AnalysisConfig) GetSitesPath() string {
	if c.SitesPath == nil {
		return "data/sites.geojson"
	}
	return *c.SitesPath
}

// GetExplorationPath returns the exploration table path or the default.
func (c *AnalysisConfig) GetExplorationPath() string {
	if c.ExplorationPath == nil {
		return "data/exploration.csv"
	}
	return *c.ExplorationPath
}

// GetPerceptionPath returns the perception table path or the default.
func (c *AnalysisConfig) GetPerceptionPath() string {
	if c.PerceptionPath == nil {
		return "data/perception.csv"
	}
	return *c.PerceptionPath
}

// GetDissectionPath returns the dissection table path or the default.
func (c *AnalysisConfig) GetDissectionPath() string {
	if c.DissectionPath == nil {
		return "data/dissection.csv"
	}
	return *c.DissectionPath
}

// GetOutputDir returns the output directory or the default.
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil {
		return "output"
	}
	return *c.OutputDir
}

// GetArchivePath returns the SQLite archive path. Empty means disabled.
func (c *AnalysisConfig) GetArchivePath() string {
	if c.ArchivePath == nil {
		return ""
	}
	return *c.ArchivePath
}

// GetStrictJoin returns the strict_join value or the default.
func (c *AnalysisConfig) GetStrictJoin() bool {
	if c.StrictJoin == nil {
		return false // mismatches are reported, not fatal
	}
	return *c.StrictJoin
}

// GetSeed returns the random seed or the default.
func (c *AnalysisConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 2016
	}
	return *c.Seed
}

// GetDraws returns the number of simulated coefficient vectors or the default.
func (c *AnalysisConfig) GetDraws() int {
	if c.Draws == nil {
		return 4000
	}
	return *c.Draws
}

// GetIntervalWidth returns the ribbon interval width or the default.
func (c *AnalysisConfig) GetIntervalWidth() float64 {
	if c.IntervalWidth == nil {
		return 0.95
	}
	return *c.IntervalWidth
}

// GetGridPoints returns the number of grid points per curve or the default.
func (c *AnalysisConfig) GetGridPoints() int {
	if c.GridPoints == nil {
		return 101
	}
	return *c.GridPoints
}

// GetCorrelogramIncrement returns the distance class width or the default.
func (c *AnalysisConfig) GetCorrelogramIncrement() float64 {
	if c.CorrelogramIncrement == nil {
		return 1000
	}
	return *c.CorrelogramIncrement
}

// GetCorrelogramMaxDistance returns the largest distance considered, 0 for all pairs.
func (c *AnalysisConfig) GetCorrelogramMaxDistance() float64 {
	if c.CorrelogramMaxDistance == nil {
		return 0
	}
	return *c.CorrelogramMaxDistance
}

// GetPermutations returns the number of permutations per distance class or the default.
func (c *AnalysisConfig) GetPermutations() int {
	if c.Permutations == nil {
		return 999
	}
	return *c.Permutations
}

// GetNLSStart returns the declared power-law starting point or the default.
func (c *AnalysisConfig) GetNLSStart() NLSStart {
	if c.NLSStart == nil {
		return NLSStart{A0: 1, A1: 0, B0: 3, B1: 0, Delta: 0.5}
	}
	return *c.NLSStart
}

// GetNLSMaxIterations returns the optimizer iteration cap or the default.
func (c *AnalysisConfig) GetNLSMaxIterations() int {
	if c.NLSMaxIterations == nil {
		return 500
	}
	return *c.NLSMaxIterations
}

// GetReferenceDistance returns the perception reference distance or the default.
func (c *AnalysisConfig) GetReferenceDistance() float64 {
	if c.ReferenceDistance == nil {
		return 10
	}
	return *c.ReferenceDistance
}

// GetReferenceSize returns the dissection reference shell size or the default.
func (c *AnalysisConfig) GetReferenceSize() float64 {
	if c.ReferenceSize == nil {
		return 1
	}
	return *c.ReferenceSize
}

// GetExplorationModel returns the exploration model used for plots or the default.
func (c *AnalysisConfig) GetExplorationModel() string {
	if c.ExplorationModel == nil {
		return "m50"
	}
	return *c.ExplorationModel
}

// GetPerceptionModel returns the perception model used for plots or the default.
func (c *AnalysisConfig) GetPerceptionModel() string {
	if c.PerceptionModel == nil {
		return "m50"
	}
	return *c.PerceptionModel
}

// GetDissectionModel returns the dissection model used for plots or the default.
func (c *AnalysisConfig) GetDissectionModel() string {
	if c.DissectionModel == nil {
		return "m50"
	}
	return *c.DissectionModel
}

// GetParallelFits returns whether the three model domains are fitted concurrently.
func (c *AnalysisConfig) GetParallelFits() bool {
	if c.ParallelFits == nil {
		return true
	}
	return *c.ParallelFits
}
