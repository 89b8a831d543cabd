// internal/config/config.go
//
// This package handles configuration and the .sensei directory structure.
// Every content checkout that runs the sensei tools gets a .sensei/ folder in
// its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SenseiDir is the name of the directory we create in each project.
	SenseiDir = ".sensei"

	defaultStoryDir    = "story"
	defaultSnapshotDir = "_legacy_backup"
	defaultLogMode     = "dev"

	defaultUserPriority       = 10
	defaultNormalPriority     = 5
	defaultBackgroundPriority = 1
)

const defaultProjectConfigYAML = `# circuit sensei project configuration
version: 1

# Content locations, relative to the project root.
story:
  dir: story
  manifest: story/levels-manifest.json
  games_dir: story/levels-games
  levels_dir: story/levels
  snapshot_dir: _legacy_backup

# Content server used by the game client during development.
server:
  enabled: true
  host: 127.0.0.1
  port: 8766

# mode is dev (console friendly) or prod (JSON lines).
logging:
  mode: dev

# Scheduler priority bands. Higher runs first.
queue:
  user: 10
  normal: 5
  background: 1
`

// StoryConfig locates the content files.
type StoryConfig struct {
	Dir         string `yaml:"dir"`
	Manifest    string `yaml:"manifest"`
	GamesDir    string `yaml:"games_dir"`
	LevelsDir   string `yaml:"levels_dir"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// ServerConfig captures optional overrides for the content server.
type ServerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// LoggingConfig selects the log encoder and file.
type LoggingConfig struct {
	Mode string `yaml:"mode"`
	File string `yaml:"file,omitempty"`
}

// QueueConfig names the priority bands used when submitting work.
type QueueConfig struct {
	User       int `yaml:"user"`
	Normal     int `yaml:"normal"`
	Background int `yaml:"background"`
}

// ProjectConfig models .sensei/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Story   StoryConfig   `yaml:"story"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Queue   QueueConfig   `yaml:"queue"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the content checkout the tools run against.
	ProjectDir string

	// SenseiProjectDir is ProjectDir/.sensei
	SenseiProjectDir string

	Project ProjectConfig
}

// InitSenseiDir creates the .sensei directory structure in projectDir and
// writes a default config.yaml when none exists.
//
// .sensei/
// ├── config.yaml
// └── logs/
func InitSenseiDir(projectDir string) error {
	senseiDir := filepath.Join(projectDir, SenseiDir)
	if err := os.MkdirAll(filepath.Join(senseiDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure sensei dir: %w", err)
	}
	return ensureProjectConfig(filepath.Join(senseiDir, "config.yaml"))
}

// Load reads .sensei/config.yaml (when present) and applies SENSEI_*
// environment overrides. A missing file yields the defaults.
func Load(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir:       abs,
		SenseiProjectDir: filepath.Join(abs, SenseiDir),
		Project:          defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoryDir returns the content root.
func (c *Config) StoryDir() string { return c.Project.Story.Dir }

// ManifestPath returns the level manifest path.
func (c *Config) ManifestPath() string { return c.Project.Story.Manifest }

// GamesDir returns the directory generated variants are written to.
func (c *Config) GamesDir() string { return c.Project.Story.GamesDir }

// LevelsDir returns the legacy base level directory read by the migration.
func (c *Config) LevelsDir() string { return c.Project.Story.LevelsDir }

// SnapshotDir returns the trusted snapshot compared against generated files.
func (c *Config) SnapshotDir() string { return c.Project.Story.SnapshotDir }

// DifficultyIndexPath returns the path of the generated difficulty index.
func (c *Config) DifficultyIndexPath() string {
	return filepath.Join(c.StoryDir(), "levels-difficulty-index.json")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.SenseiProjectDir, "logs")
}

// LogFile returns the log file path.
func (c *Config) LogFile() string {
	if c.Project.Logging.File != "" {
		return c.Project.Logging.File
	}
	return filepath.Join(c.LogsDir(), "sensei.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.SenseiProjectDir, "config.yaml")
}

// Save writes the current project config back to .sensei/config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.SenseiProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure sensei dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed ProjectConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		c.Project = parsed
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	c.Project.applyEnvOverrides()
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	story := &pc.Story
	if strings.TrimSpace(story.Dir) == "" {
		story.Dir = defaultStoryDir
	}
	if strings.TrimSpace(story.Manifest) == "" {
		story.Manifest = filepath.Join(story.Dir, "levels-manifest.json")
	}
	if strings.TrimSpace(story.GamesDir) == "" {
		story.GamesDir = filepath.Join(story.Dir, "levels-games")
	}
	if strings.TrimSpace(story.LevelsDir) == "" {
		story.LevelsDir = filepath.Join(story.Dir, "levels")
	}
	if strings.TrimSpace(story.SnapshotDir) == "" {
		story.SnapshotDir = defaultSnapshotDir
	}
	if strings.TrimSpace(pc.Logging.Mode) == "" {
		pc.Logging.Mode = defaultLogMode
	}
	if pc.Queue.User == 0 && pc.Queue.Normal == 0 && pc.Queue.Background == 0 {
		pc.Queue = QueueConfig{
			User:       defaultUserPriority,
			Normal:     defaultNormalPriority,
			Background: defaultBackgroundPriority,
		}
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if dir := strings.TrimSpace(os.Getenv("SENSEI_STORY_DIR")); dir != "" {
		// Story paths are re-derived from the new dir.
		pc.Story = StoryConfig{Dir: dir, SnapshotDir: pc.Story.SnapshotDir}
	}
	if path := strings.TrimSpace(os.Getenv("SENSEI_MANIFEST")); path != "" {
		pc.Story.Manifest = path
	}
	if mode := strings.TrimSpace(os.Getenv("SENSEI_LOG_MODE")); mode != "" {
		pc.Logging.Mode = mode
	}
	if value := strings.TrimSpace(os.Getenv("SENSEI_QUEUE_USER")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			pc.Queue.User = parsed
		}
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Story.Dir = resolvePath(base, pc.Story.Dir)
	pc.Story.Manifest = resolvePath(base, pc.Story.Manifest)
	pc.Story.GamesDir = resolvePath(base, pc.Story.GamesDir)
	pc.Story.LevelsDir = resolvePath(base, pc.Story.LevelsDir)
	pc.Story.SnapshotDir = resolvePath(base, pc.Story.SnapshotDir)
	pc.Logging.Mode = strings.ToLower(strings.TrimSpace(pc.Logging.Mode))
	pc.Logging.File = resolvePath(base, pc.Logging.File)
	pc.Server.Host = strings.TrimSpace(pc.Server.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Logging.Mode {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("logging.mode must be 'dev' or 'prod'")
	}
	if pc.Server.Port < 0 || pc.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	q := pc.Queue
	if !(q.User > q.Normal && q.Normal > q.Background) {
		return fmt.Errorf("queue priorities must satisfy user > normal > background")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
