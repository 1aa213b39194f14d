package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Schedule ScheduleConfig `toml:"schedule"`
	Server   ServerConfig   `toml:"server"`
	UI       UIConfig       `toml:"ui"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ScheduleConfig struct {
	CriticalEpsilon float64 `toml:"critical_epsilon"`
	PassLimitFactor int     `toml:"pass_limit_factor"`
	MaxCrashSteps   int     `toml:"max_crash_steps"`
	StartDate       string  `toml:"start_date"` // YYYY-MM-DD, optional
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type UIConfig struct {
	ShowTimeline bool         `toml:"show_timeline"`
	ConfirmReset bool         `toml:"confirm_reset"`
	Keys         UIKeysConfig `toml:"keys"`
}

// UIKeysConfig overrides TUI key bindings; blank values keep the defaults.
type UIKeysConfig struct {
	Crash     string `toml:"crash"`
	Reset     string `toml:"reset"`
	Recompute string `toml:"recompute"`
	Report    string `toml:"report"`
	Copy      string `toml:"copy"`
	RunLog    string `toml:"run_log"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".critpath/log",
			},
		},
		Schedule: ScheduleConfig{
			CriticalEpsilon: 0.001,
			PassLimitFactor: 2,
			MaxCrashSteps:   100,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		UI: UIConfig{
			ShowTimeline: true,
			ConfirmReset: true,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Schedule.CriticalEpsilon <= 0 {
		return fmt.Errorf("schedule.critical_epsilon must be > 0, got %v", c.Schedule.CriticalEpsilon)
	}
	if c.Schedule.PassLimitFactor < 1 {
		return fmt.Errorf("schedule.pass_limit_factor must be >= 1, got %d", c.Schedule.PassLimitFactor)
	}
	if c.Schedule.MaxCrashSteps < 1 {
		return fmt.Errorf("schedule.max_crash_steps must be >= 1, got %d", c.Schedule.MaxCrashSteps)
	}
	if _, err := domain.ParseStartDate(c.Schedule.StartDate); err != nil {
		return fmt.Errorf("invalid schedule.start_date %q: %w", c.Schedule.StartDate, err)
	}

	api := strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api != "" && api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	return nil
}

// StartDate returns the configured default project start date, if any.
func (c Config) StartDate() *time.Time {
	start, err := domain.ParseStartDate(c.Schedule.StartDate)
	if err != nil {
		return nil
	}
	return start
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
