// Package config loads raspimon settings from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"raspimon/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML file when --config is not given
const EnvConfigFile = "RASPIMON_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	HTTPAddr   string
	DBPath     string
	DBMaxConns int

	MetricsInterval time.Duration
	CleanupInterval time.Duration
	RetentionDays   int

	AlertCheckInterval time.Duration
	AlertCooldown      time.Duration
	Thresholds         models.Thresholds

	HeartbeatInterval time.Duration

	LogLevel  string
	LogFormat string

	AuthSecret     string
	TokenExpiry    time.Duration
	AllowedOrigins []string
	RateLimit      float64
}

// Keys lists every recognised setting by its environment name. YAML files
// use the same names in lower case.
var Keys = []string{
	"HTTP_ADDR", "DB_PATH", "DB_MAX_CONNS",
	"METRICS_INTERVAL", "CLEANUP_INTERVAL", "DATA_RETENTION_DAYS",
	"ALERT_CHECK_INTERVAL", "ALERT_COOLDOWN",
	"ALERT_CPU_THRESHOLD", "ALERT_MEMORY_THRESHOLD", "ALERT_DISK_THRESHOLD",
	"ALERT_TEMP_THRESHOLD", "ALERT_LOAD_THRESHOLD",
	"WS_HEARTBEAT_INTERVAL", "LOG_LEVEL", "LOG_FORMAT",
	"AUTH_SECRET", "AUTH_TOKEN_EXPIRY", "ALLOWED_ORIGINS", "API_RATE_LIMIT",
}

func Default() *Config {
	return &Config{
		HTTPAddr:           ":5004",
		DBPath:             "./data/raspimon.db",
		DBMaxConns:         20,
		MetricsInterval:    5 * time.Second,
		CleanupInterval:    24 * time.Hour,
		RetentionDays:      30,
		AlertCheckInterval: 30 * time.Second,
		AlertCooldown:      10 * time.Minute,
		Thresholds:         models.DefaultThresholds(),
		HeartbeatInterval:  30 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
		TokenExpiry:        90 * 24 * time.Hour,
		RateLimit:          100,
	}
}

// Load builds the configuration. file may be empty, in which case
// RASPIMON_CONFIG is consulted. A .env file in the working directory is
// loaded first without overriding variables already set.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}
	for _, key := range Keys {
		if raw, ok := os.LookupEnv(key); ok && raw != "" {
			if err := cfg.Set(key, raw); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	for k, v := range values {
		var raw string
		switch v := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, len(v))
			for i, p := range v {
				parts[i] = fmt.Sprint(p)
			}
			raw = strings.Join(parts, ",")
		default:
			raw = fmt.Sprint(v)
		}
		if err := c.Set(strings.ToUpper(k), raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// Set applies one setting from its textual form
func (c *Config) Set(key, raw string) error {
	raw = strings.TrimSpace(raw)
	var err error
	switch key {
	case "HTTP_ADDR":
		c.HTTPAddr = raw
	case "DB_PATH":
		c.DBPath = raw
	case "DB_MAX_CONNS":
		c.DBMaxConns, err = strconv.Atoi(raw)
	case "METRICS_INTERVAL":
		c.MetricsInterval, err = ParseInterval(raw)
	case "CLEANUP_INTERVAL":
		c.CleanupInterval, err = ParseInterval(raw)
	case "DATA_RETENTION_DAYS":
		c.RetentionDays, err = strconv.Atoi(raw)
	case "ALERT_CHECK_INTERVAL":
		c.AlertCheckInterval, err = ParseInterval(raw)
	case "ALERT_COOLDOWN":
		c.AlertCooldown, err = ParseInterval(raw)
	case "ALERT_CPU_THRESHOLD":
		c.Thresholds.CPU, err = strconv.ParseFloat(raw, 64)
	case "ALERT_MEMORY_THRESHOLD":
		c.Thresholds.Memory, err = strconv.ParseFloat(raw, 64)
	case "ALERT_DISK_THRESHOLD":
		c.Thresholds.Disk, err = strconv.ParseFloat(raw, 64)
	case "ALERT_TEMP_THRESHOLD":
		c.Thresholds.Temperature, err = strconv.ParseFloat(raw, 64)
	case "ALERT_LOAD_THRESHOLD":
		c.Thresholds.Load, err = strconv.ParseFloat(raw, 64)
	case "WS_HEARTBEAT_INTERVAL":
		c.HeartbeatInterval, err = ParseInterval(raw)
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(raw)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(raw)
	case "AUTH_SECRET":
		c.AuthSecret = raw
	case "AUTH_TOKEN_EXPIRY":
		c.TokenExpiry, err = ParseInterval(raw)
	case "ALLOWED_ORIGINS":
		c.AllowedOrigins = splitList(raw)
	case "API_RATE_LIMIT":
		c.RateLimit, err = strconv.ParseFloat(raw, 64)
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, raw, err)
	}
	return nil
}

// ParseInterval accepts a Go duration ("5s") or a bare integer of milliseconds ("5000")
func ParseInterval(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	positive("DB_MAX_CONNS", c.DBMaxConns > 0)
	positive("METRICS_INTERVAL", c.MetricsInterval > 0)
	positive("CLEANUP_INTERVAL", c.CleanupInterval > 0)
	positive("DATA_RETENTION_DAYS", c.RetentionDays > 0)
	positive("ALERT_CHECK_INTERVAL", c.AlertCheckInterval > 0)
	positive("ALERT_COOLDOWN", c.AlertCooldown > 0)
	positive("ALERT_CPU_THRESHOLD", c.Thresholds.CPU > 0)
	positive("ALERT_MEMORY_THRESHOLD", c.Thresholds.Memory > 0)
	positive("ALERT_DISK_THRESHOLD", c.Thresholds.Disk > 0)
	positive("ALERT_TEMP_THRESHOLD", c.Thresholds.Temperature > 0)
	positive("ALERT_LOAD_THRESHOLD", c.Thresholds.Load > 0)
	positive("WS_HEARTBEAT_INTERVAL", c.HeartbeatInterval > 0)
	positive("AUTH_TOKEN_EXPIRY", c.TokenExpiry > 0)
	positive("API_RATE_LIMIT", c.RateLimit > 0)
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not text or json", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
