package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPath = "configs/config.yaml"

type Config struct {
	Intranet IntranetConfig `yaml:"intranet"`

	Server struct {
		Port    int      `yaml:"port"`
		APIKeys []string `yaml:"api_keys"`
	} `yaml:"server"`

	Timezone  string `yaml:"timezone"`
	RoomsPath string `yaml:"rooms_path"`

	Windows struct {
		WeekDays      int `yaml:"week_days"`
		CancelledDays int `yaml:"cancelled_days"`
		ExamDays      int `yaml:"exam_days"`
		FilterDays    int `yaml:"filter_days"`
		MaxRangeDays  int `yaml:"max_range_days"`
	} `yaml:"windows"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Path                  string `yaml:"path"`
		SnapshotRetentionDays int    `yaml:"snapshot_retention_days"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

type IntranetConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Username          string  `yaml:"username"`
	Password          string  `yaml:"password"`
	UsernameField     string  `yaml:"username_field"`
	PasswordField     string  `yaml:"password_field"`
	LoginPath         string  `yaml:"login_path"`
	TimetablePath     string  `yaml:"timetable_path"`
	SessionCookie     string  `yaml:"session_cookie"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads the YAML config at path. The default path may be absent, in which
// case the service is configured from the environment alone.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Intranet.BaseURL, "INTRANET_BASE_URL")
	setFromEnv(&c.Intranet.Username, "INTRANET_USERNAME")
	setFromEnv(&c.Intranet.Password, "INTRANET_PASSWORD")
}

func setFromEnv(dst *string, key string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Intranet.LoginPath == "" {
		c.Intranet.LoginPath = "/"
	}
	if c.Intranet.TimetablePath == "" {
		c.Intranet.TimetablePath = "/timetable/ajax-get-timetable"
	}
	if c.Intranet.SessionCookie == "" {
		c.Intranet.SessionCookie = "sturmsession"
	}
	if c.Intranet.TimeoutSeconds <= 0 {
		c.Intranet.TimeoutSeconds = 10
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Zurich"
	}
	if c.RoomsPath == "" {
		c.RoomsPath = "configs/rooms.yaml"
	}
	if c.Windows.WeekDays <= 0 {
		c.Windows.WeekDays = 7
	}
	if c.Windows.CancelledDays <= 0 {
		c.Windows.CancelledDays = 14
	}
	if c.Windows.ExamDays <= 0 {
		c.Windows.ExamDays = 30
	}
	if c.Windows.FilterDays <= 0 {
		c.Windows.FilterDays = 7
	}
	if c.Windows.MaxRangeDays <= 0 {
		c.Windows.MaxRangeDays = 90
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Database.SnapshotRetentionDays == 0 {
		c.Database.SnapshotRetentionDays = 30
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Intranet.BaseURL == "" {
		return fmt.Errorf("intranet.base_url is required (or INTRANET_BASE_URL)")
	}
	if c.Intranet.Username == "" || c.Intranet.Password == "" {
		return fmt.Errorf("intranet credentials are required (INTRANET_USERNAME, INTRANET_PASSWORD)")
	}
	if c.Intranet.RequestsPerSecond < 0 {
		return fmt.Errorf("intranet.requests_per_second cannot be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) IntranetTimeout() time.Duration {
	return time.Duration(c.Intranet.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Intranet.CacheTTLSeconds) * time.Second
}
