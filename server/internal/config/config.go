package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultPort           = 8080
	DefaultServeDir       = "."
	DefaultDataSource     = DataSourceOnline
	DefaultTeam           = "coding"
	DefaultInterpreter    = "node"
	DefaultQueryScript    = "lib/vkb-server/db-query-cli.js"
	DefaultProcessCLI     = "bin/vkb-cli.js"
	DefaultQueryTimeout   = 10 * time.Second
	DefaultProcessTimeout = 30 * time.Second
	DefaultArtifact       = "dist/memory.json"
	DefaultPushInterval   = 30 * time.Second
)

// Data source modes reported to the UI by GET /api/config.
const (
	DataSourceOnline = "online"
	DataSourceBatch  = "batch"
)

// Team listing strategies used by the directory resolver.
const (
	ListingOnline    = "online"
	ListingLocalScan = "local-scan"
)

// Config is the complete server configuration. It is built from defaults,
// an optional YAML file and the process environment, in that order.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Teams   TeamsConfig   `yaml:"teams"`
}

// ServerConfig holds listener and filesystem layout settings.
type ServerConfig struct {
	// Port is the TCP port the HTTP server listens on (default 8080).
	Port int `yaml:"port" envconfig:"PORT"`

	// ServeDir is the directory static assets are served from (default ".").
	ServeDir string `yaml:"serve_dir" ignored:"true"`

	// ProjectRoot is the knowledge repository root. Backend scripts are
	// resolved against it and /knowledge-management/* files are served from it.
	ProjectRoot string `yaml:"project_root" envconfig:"CODING_REPO"`

	// KBPath is the knowledge base root holding .data/knowledge-export.
	// Defaults to ProjectRoot.
	KBPath string `yaml:"kb_path" envconfig:"CODING_KB_PATH"`

	// DataSource is reported to the UI: online | batch.
	DataSource string `yaml:"data_source" envconfig:"VKB_DATA_SOURCE"`

	// PushInterval is how often the WebSocket hub re-sends the selection.
	PushInterval time.Duration `yaml:"push_interval" ignored:"true"`
}

// BackendConfig describes the external query and reprocess executables.
type BackendConfig struct {
	// Interpreter runs both scripts (default "node").
	Interpreter string `yaml:"interpreter"`

	// QueryScript answers `<queryType> <jsonParams>` queries. Relative paths
	// are resolved against Server.ProjectRoot.
	QueryScript string `yaml:"query_script"`

	// ProcessCLI regenerates visualization data via `data process`.
	ProcessCLI string `yaml:"process_cli"`

	// QueryTimeout bounds read queries (default 10s).
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// ProcessTimeout bounds the reprocess run (default 30s).
	ProcessTimeout time.Duration `yaml:"process_timeout"`

	// LogMarkers overrides the leading characters that mark a stdout line as
	// backend logging rather than the JSON payload. Empty keeps the built-in set.
	LogMarkers []string `yaml:"log_markers"`
}

// TeamsConfig holds team selection and listing settings.
type TeamsConfig struct {
	// Default is the team substituted for an empty selection (default "coding").
	Default string `yaml:"default" ignored:"true"`

	// Initial is the raw selection at startup, e.g. "coding,ui" or "{coding,ui}".
	Initial string `yaml:"initial" envconfig:"KNOWLEDGE_VIEW"`

	// Listing is online | local-scan. Empty follows Server.DataSource.
	Listing string `yaml:"listing" envconfig:"VKB_TEAM_LISTING"`

	// ExportDir overrides <KBPath>/.data/knowledge-export.
	ExportDir string `yaml:"export_dir" envconfig:"KNOWLEDGE_EXPORT_DIR"`

	// Artifact is the materialized visualization file removed on every team
	// switch. Relative paths are resolved against Server.ServeDir.
	Artifact string `yaml:"artifact" ignored:"true"`

	// InsightTypes overrides the entity types counted per team.
	InsightTypes []string `yaml:"insight_types" ignored:"true"`
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := envconfig.Process("", &cfg.Teams); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			ServeDir:     DefaultServeDir,
			ProjectRoot:  ".",
			DataSource:   DefaultDataSource,
			PushInterval: DefaultPushInterval,
		},
		Backend: BackendConfig{
			Interpreter:    DefaultInterpreter,
			QueryScript:    DefaultQueryScript,
			ProcessCLI:     DefaultProcessCLI,
			QueryTimeout:   DefaultQueryTimeout,
			ProcessTimeout: DefaultProcessTimeout,
		},
		Teams: TeamsConfig{
			Default:  DefaultTeam,
			Initial:  DefaultTeam,
			Artifact: DefaultArtifact,
		},
	}
}

// Validate checks structural constraints. It is exported so callers that
// override fields after Load (CLI arguments) can re-check.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.DataSource {
	case DataSourceOnline, DataSourceBatch:
	default:
		return fmt.Errorf("server.data_source %q unknown: want online|batch", c.Server.DataSource)
	}
	switch c.Teams.Listing {
	case ListingOnline, ListingLocalScan, "":
	default:
		return fmt.Errorf("teams.listing %q unknown: want online|local-scan", c.Teams.Listing)
	}
	if c.Teams.Default == "" {
		return fmt.Errorf("teams.default must not be empty")
	}
	if c.Backend.Interpreter == "" {
		return fmt.Errorf("backend.interpreter is required")
	}
	if c.Backend.QueryTimeout <= 0 {
		return fmt.Errorf("backend.query_timeout must be positive")
	}
	if c.Backend.ProcessTimeout <= 0 {
		return fmt.Errorf("backend.process_timeout must be positive")
	}
	for _, m := range c.Backend.LogMarkers {
		if m == "" {
			return fmt.Errorf("backend.log_markers must not contain empty entries")
		}
	}
	return nil
}

// Listing returns the effective team listing strategy.
func (c *Config) Listing() string {
	if c.Teams.Listing != "" {
		return c.Teams.Listing
	}
	if c.Server.DataSource == DataSourceBatch {
		return ListingLocalScan
	}
	return ListingOnline
}

// KnowledgeBasePath returns the knowledge base root.
func (c *Config) KnowledgeBasePath() string {
	if c.Server.KBPath != "" {
		return absPath(c.Server.KBPath)
	}
	return absPath(c.Server.ProjectRoot)
}

// ExportDir returns the directory holding per-team exported knowledge files.
func (c *Config) ExportDir() string {
	if c.Teams.ExportDir != "" {
		return absPath(c.Teams.ExportDir)
	}
	return filepath.Join(c.KnowledgeBasePath(), ".data", "knowledge-export")
}

// ProjectRoot returns the absolute project root.
func (c *Config) ProjectRoot() string { return absPath(c.Server.ProjectRoot) }

// QueryScriptPath returns the absolute path of the backend query script.
func (c *Config) QueryScriptPath() string {
	return resolve(c.ProjectRoot(), c.Backend.QueryScript)
}

// ProcessCLIPath returns the absolute path of the reprocess CLI.
func (c *Config) ProcessCLIPath() string {
	return resolve(c.ProjectRoot(), c.Backend.ProcessCLI)
}

// ArtifactPath returns the absolute path of the cached visualization file.
func (c *Config) ArtifactPath() string {
	return resolve(absPath(c.Server.ServeDir), c.Teams.Artifact)
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
