package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config path.
const EnvConfigPath = "GRIDPATH_CONFIG"

// DefaultConfigPath is used when EnvConfigPath is unset.
const DefaultConfigPath = "config/navgrid.yaml"

// NavGrid holds all configuration for the navigation grid service.
type NavGrid struct {
	LogLevel  string `yaml:"log_level"`
	LevelsDir string `yaml:"levels_dir"`

	Planner  Planner  `yaml:"planner"`
	HTTP     HTTP     `yaml:"http"`
	Metrics  Metrics  `yaml:"metrics"`
	Database Database `yaml:"database"`
	Watch    Watch    `yaml:"watch"`
}

// Planner tunes grid setup and move range queries.
type Planner struct {
	// Sample half-heights as fractions of the level's floor height.
	ObstacleReach float64 `yaml:"obstacle_reach"`
	FloorReach    float64 `yaml:"floor_reach"`

	// MoveStepCost is the path cost one step of move range is worth.
	MoveStepCost int `yaml:"move_step_cost"`
}

// HTTP configures the query API listener of serve.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Metrics enables the Prometheus endpoint on the HTTP listener.
type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Database enables persistence of levels and walkability overrides.
type Database struct {
	Enabled bool           `yaml:"enabled"`
	Conn    DatabaseConfig `yaml:",inline"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Watch configures level directory hot reload.
type Watch struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultNavGrid returns NavGrid config with sensible defaults.
func DefaultNavGrid() NavGrid {
	return NavGrid{
		LogLevel:  "info",
		LevelsDir: "levels",
		Planner: Planner{
			ObstacleReach: 0.4,
			FloorReach:    0.2,
			MoveStepCost:  10,
		},
		HTTP: HTTP{
			Addr: ":9102",
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Database: Database{
			Conn: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "gridpath",
				Password: "gridpath",
				DBName:   "gridpath",
				SSLMode:  "disable",
			},
		},
		Watch: Watch{
			Enabled:  true,
			Debounce: 250 * time.Millisecond,
		},
	}
}

// Path returns the config path from EnvConfigPath or the default.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadNavGrid loads navigation config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadNavGrid(path string) (NavGrid, error) {
	cfg := DefaultNavGrid()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Planner.ObstacleReach <= 0 || cfg.Planner.FloorReach <= 0 {
		return cfg, fmt.Errorf("config %s: sample reaches must be positive", path)
	}
	if cfg.Planner.MoveStepCost <= 0 {
		return cfg, fmt.Errorf("config %s: move_step_cost must be positive", path)
	}

	return cfg, nil
}
