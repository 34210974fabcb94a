package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"todosync/internal/due"
)

const (
	BackendTodoist = "todoist"
	BackendLocal   = "local"

	envPrefix = "TODOSYNC"
)

type Config struct {
	Canvas   CanvasConfig   `mapstructure:"canvas"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Task     TaskConfig     `mapstructure:"task"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`

	file string
}

type CanvasConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	PerPage int    `mapstructure:"per_page"`
}

type TrackerConfig struct {
	Backend string `mapstructure:"backend"`
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	DBPath  string `mapstructure:"db_path"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	NullAssignments      bool    `mapstructure:"null_assignments"`
	LockedAssignments    bool    `mapstructure:"locked_assignments"`
	NoDueDateAssignments bool    `mapstructure:"no_due_date_assignments"`
	Courses              []int64 `mapstructure:"courses"`
	DisplayTimezone      string  `mapstructure:"display_timezone"`
	AllDaySentinel       string  `mapstructure:"all_day_sentinel"`
}

type TaskConfig struct {
	Priority int      `mapstructure:"priority"`
	Labels   []string `mapstructure:"labels"`
}

type ThrottleConfig struct {
	Threshold  int           `mapstructure:"threshold"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	MaxCreated int           `mapstructure:"max_created"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	NoColor bool   `mapstructure:"no_color"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration from path, or from config.yaml in the working
// directory, ./config or ~/.todosync when path is empty. A missing file is
// not an error; defaults and TODOSYNC_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".todosync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.file = v.ConfigFileUsed()
	if cfg.file == "" {
		cfg.file = path
	}
	if cfg.file == "" {
		cfg.file = "config.yaml"
	}
	return &cfg, nil
}

// File is the config file the settings came from, or the file that would be
// written by SaveCourses when none was found.
func (c *Config) File() string {
	return c.file
}

// Validate rejects settings the sync cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Task.Priority < 1 || c.Task.Priority > 4 {
		errs = append(errs, fmt.Errorf("task.priority must be between 1 and 4, got %d", c.Task.Priority))
	}
	if _, err := due.NewNormalizer(c.Sync.DisplayTimezone, c.Sync.AllDaySentinel); err != nil {
		errs = append(errs, err)
	}
	if c.Throttle.Threshold < 1 {
		errs = append(errs, fmt.Errorf("throttle.threshold must be positive"))
	}
	if c.Throttle.MinDelay > c.Throttle.MaxDelay {
		errs = append(errs, fmt.Errorf("throttle.min_delay %s exceeds throttle.max_delay %s", c.Throttle.MinDelay, c.Throttle.MaxDelay))
	}
	if c.Throttle.MaxCreated < 1 {
		errs = append(errs, fmt.Errorf("throttle.max_created must be positive"))
	}
	switch c.Tracker.Backend {
	case BackendTodoist, BackendLocal:
	default:
		errs = append(errs, fmt.Errorf("tracker.backend must be %q or %q, got %q", BackendTodoist, BackendLocal, c.Tracker.Backend))
	}
	return errors.Join(errs...)
}

// SaveCourses stores the selected course ids in the config file, keeping
// every other setting in the file as it is.
func SaveCourses(path string, ids []int64) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.Set("sync.courses", ids)
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WriteDefault writes a config file with every default, replaced by
// overrides where given. It refuses to overwrite an existing file.
func WriteDefault(path string, overrides map[string]any) error {
	v := viper.New()
	setDefaults(v)
	for key, value := range overrides {
		v.Set(key, value)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("canvas.base_url", "https://canvas.instructure.com")
	v.SetDefault("canvas.token", "")
	v.SetDefault("canvas.per_page", 100)

	v.SetDefault("tracker.backend", BackendTodoist)
	v.SetDefault("tracker.base_url", "https://api.todoist.com/api/v1")
	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.db_path", "data/todosync.db")

	v.SetDefault("http.timeout", "30s")

	v.SetDefault("sync.null_assignments", true)
	v.SetDefault("sync.locked_assignments", true)
	v.SetDefault("sync.no_due_date_assignments", true)
	v.SetDefault("sync.courses", []int64{})
	v.SetDefault("sync.display_timezone", due.DefaultZone)
	v.SetDefault("sync.all_day_sentinel", due.DefaultSentinel)

	v.SetDefault("task.priority", 1)
	v.SetDefault("task.labels", []string{})

	v.SetDefault("throttle.threshold", 50)
	v.SetDefault("throttle.min_delay", "100ms")
	v.SetDefault("throttle.max_delay", "2500ms")
	v.SetDefault("throttle.max_created", 250)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "data/todosync.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("server.address", ":8080")
}
