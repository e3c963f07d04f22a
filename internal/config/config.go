// Package config loads and validates screenpilot configuration.
package config

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all screenpilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Target application
	App AppConfig `yaml:"app"`

	// Workspace readiness checks
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Workflow execution settings
	Workflow WorkflowConfig `yaml:"workflow"`

	// Instruction catalogue
	Catalogue CatalogueConfig `yaml:"catalogue"`

	// Table analysis
	Table TableConfig `yaml:"table"`

	// Text recognition
	OCR OCRConfig `yaml:"ocr"`

	// Failure evidence
	Evidence EvidenceConfig `yaml:"evidence"`

	// Notifications
	Notify NotifyConfig `yaml:"notify"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AppConfig identifies and launches the target desktop application.
type AppConfig struct {
	Name          string `yaml:"name"`            // Display name used in logs and notifications
	ProcessName   string `yaml:"process_name"`    // Process executable name, e.g. "trafficdesk.exe"
	Executable    string `yaml:"executable"`      // Full launch path
	WindowTitle   string `yaml:"window_title"`    // Title substring used to locate the window
	LaunchWait    string `yaml:"launch_wait"`     // Wait after launching before re-checking
	LaunchRetries int    `yaml:"launch_retries"`  // Attempts to get the process running
	FixRetries    int    `yaml:"startup_retries"` // Visual-verify/fix attempts during startup
}

// WorkspaceConfig configures the corner-template readiness check.
type WorkspaceConfig struct {
	CornerTopLeft     string  `yaml:"corner_top_left"`     // Template image path
	CornerTopRight    string  `yaml:"corner_top_right"`    // Template image path
	CornerBottomRight string  `yaml:"corner_bottom_right"` // Template image path
	RegionSize        int     `yaml:"region_size"`         // Square search region per corner, px
	Confidence        float64 `yaml:"confidence"`          // Minimum match score, inclusive
	ExpectedPageText  string  `yaml:"expected_page_text"`  // Optional OCR page check, empty = skip
}

// WorkflowConfig configures instruction execution and retries.
type WorkflowConfig struct {
	MaxRetries    int    `yaml:"max_retries"`    // Attempts per instruction
	RetryDelay    string `yaml:"retry_delay"`    // Pause between attempts
	PollInterval  string `yaml:"poll_interval"`  // Text appear/disappear polling cadence
	VerifyTimeout string `yaml:"verify_timeout"` // Text appear/disappear deadline
}

// CatalogueConfig configures the instruction catalogue source.
type CatalogueConfig struct {
	Dir   string `yaml:"dir"`   // Directory of <objective_type>.json files
	Watch bool   `yaml:"watch"` // Invalidate cache on file change
}

// TableConfig configures row clustering and the table crop region.
type TableConfig struct {
	ClusteringTolerance int    `yaml:"clustering_tolerance"` // Max vertical-center gap within a row, px
	MinRowHeight        int    `yaml:"min_row_height"`       // Rows shorter than this are dropped, px
	ColumnTemplate      string `yaml:"column_template"`      // Column separator template image path
	Crop                Region `yaml:"crop"`                 // Table area in screen coordinates
}

// Region is a rectangle in screen coordinates.
type Region struct {
	Left   int `yaml:"left" json:"left"`
	Top    int `yaml:"top" json:"top"`
	Right  int `yaml:"right" json:"right"`
	Bottom int `yaml:"bottom" json:"bottom"`
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// OCRConfig configures text recognition.
type OCRConfig struct {
	Languages       []string `yaml:"languages"`
	ConfidenceFloor float64  `yaml:"confidence_floor"` // Boxes below this are discarded
}

// EvidenceConfig configures failure screenshot storage.
type EvidenceConfig struct {
	Dir string `yaml:"dir"`
}

// NotifyConfig configures the notification sinks.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`       // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`  // Master toggle - false = no logging (production)
	JSONFormat bool            `yaml:"json_format"` // Structured entries instead of text
	Dir        string          `yaml:"dir"`         // Log directory
	Categories map[string]bool `yaml:"categories"`  // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "screenpilot",
		Version: "1.0.0",

		App: AppConfig{
			Name:          "TrafficDesk",
			ProcessName:   "trafficdesk.exe",
			WindowTitle:   "TrafficDesk",
			LaunchWait:    "5s",
			LaunchRetries: 3,
			FixRetries:    3,
		},

		Workspace: WorkspaceConfig{
			CornerTopLeft:     "templates/corner_top_left.png",
			CornerTopRight:    "templates/corner_top_right.png",
			CornerBottomRight: "templates/corner_bottom_right.png",
			RegionSize:        200,
			Confidence:        0.8,
		},

		Workflow: WorkflowConfig{
			MaxRetries:    3,
			RetryDelay:    "1s",
			PollInterval:  "500ms",
			VerifyTimeout: "5s",
		},

		Catalogue: CatalogueConfig{
			Dir: "catalogue",
		},

		Table: TableConfig{
			ClusteringTolerance: 5,
			MinRowHeight:        15,
			ColumnTemplate:      "templates/column_line.png",
			Crop:                Region{Left: 206, Top: 225, Right: 1445, Bottom: 780},
		},

		OCR: OCRConfig{
			Languages:       []string{"eng"},
			ConfidenceFloor: 0.6,
		},

		Evidence: EvidenceConfig{
			Dir: "evidence",
		},

		Notify: NotifyConfig{
			SMTPPort: 587,
		},

		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load loads configuration from a YAML file, layering it over defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SCREENPILOT_APP_PATH"); path != "" {
		c.App.Executable = path
	}
	if dir := os.Getenv("SCREENPILOT_CATALOGUE_DIR"); dir != "" {
		c.Catalogue.Dir = dir
	}
	if level := os.Getenv("SCREENPILOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if pw := os.Getenv("SCREENPILOT_SMTP_PASSWORD"); pw != "" {
		c.Notify.Password = pw
	}
}

// Validate checks required fields and normalizes out-of-range values
// back to their defaults.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.App.ProcessName == "" {
		return fmt.Errorf("app.process_name is required")
	}

	if c.Workflow.MaxRetries < 1 {
		c.Workflow.MaxRetries = 3
	}
	if c.Workspace.RegionSize <= 0 {
		c.Workspace.RegionSize = 200
	}
	if c.Workspace.Confidence <= 0 || c.Workspace.Confidence > 1 {
		c.Workspace.Confidence = 0.8
	}
	if c.Table.ClusteringTolerance <= 0 {
		c.Table.ClusteringTolerance = 5
	}
	if c.Table.MinRowHeight <= 0 {
		c.Table.MinRowHeight = 15
	}
	if c.OCR.ConfidenceFloor < 0 || c.OCR.ConfidenceFloor > 1 {
		c.OCR.ConfidenceFloor = 0.6
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		c.Logging.Level = "info"
	}

	if c.Notify.Enabled {
		if c.Notify.SMTPHost == "" || c.Notify.From == "" || len(c.Notify.To) == 0 {
			return fmt.Errorf("notify enabled but smtp_host, from and to must be set")
		}
	}
	return nil
}
