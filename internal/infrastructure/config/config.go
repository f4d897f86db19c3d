package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// minJWTSecretLength is the shortest accepted HS256 signing secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for mqttconnect.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Client   ClientConfig   `yaml:"client"`
	Connect  mqtt.Options   `yaml:"connect"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
}

// ClientConfig identifies the MQTT client handle.
type ClientConfig struct {
	ServerURI string `yaml:"server_uri"`
	ClientID  string `yaml:"client_id"`

	// DisconnectQuiesceMS is how long a disconnect waits for in-flight work.
	DisconnectQuiesceMS int `yaml:"disconnect_quiesce_ms"`
}

// DatabaseConfig contains SQLite settings for the connect-attempt history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains settings for the read-only status API.
type APIConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig `yaml:"auth"`
}

// TimeoutConfig contains HTTP server timeouts in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// APIAuthConfig contains status API authentication settings.
// An empty JWTSecret leaves the API open; bind it to loopback in that case.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTCONNECT_SECTION_KEY
// For example: MQTTCONNECT_DATABASE_PATH, MQTTCONNECT_SERVER_URI
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Connect keys are left empty so the engine defaults apply.
func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURI:           "tcp://localhost:1883",
			ClientID:            "mqttconnect",
			DisconnectQuiesceMS: 250,
		},
		Connect: mqtt.Options{},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/mqttconnect.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Credentials land in the connect mapping, where BuildRequest picks them up.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTTCONNECT_SERVER_URI"); v != "" {
		cfg.Client.ServerURI = v
	}
	if v := os.Getenv("MQTTCONNECT_CLIENT_ID"); v != "" {
		cfg.Client.ClientID = v
	}

	if cfg.Connect == nil {
		cfg.Connect = mqtt.Options{}
	}
	if v := os.Getenv("MQTTCONNECT_USERNAME"); v != "" {
		cfg.Connect["username"] = v
	}
	if v := os.Getenv("MQTTCONNECT_PASSWORD"); v != "" {
		cfg.Connect["password"] = v
	}

	if v := os.Getenv("MQTTCONNECT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("MQTTCONNECT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("MQTTCONNECT_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}
}

// Validate checks the configuration for errors.
//
// The connect mapping is checked with mqtt.BuildRequest, so a bad key is
// reported at startup rather than on the first connect.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Client
	if c.Client.ServerURI == "" {
		errs = append(errs, "client.server_uri is required")
	}
	if c.Client.ClientID == "" {
		errs = append(errs, "client.client_id is required")
	}
	if c.Client.DisconnectQuiesceMS < 0 {
		errs = append(errs, "client.disconnect_quiesce_ms must not be negative")
	}

	// Connect
	if req, err := mqtt.BuildRequest(c.Connect); err != nil {
		errs = append(errs, fmt.Sprintf("connect: %v", err))
	} else {
		req.ServerURIs.Release()
	}

	// Database
	if c.Database.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when database is enabled")
		}
		if c.Database.BusyTimeout < 0 {
			errs = append(errs, "database.busy_timeout must not be negative")
		}
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// API
	if c.API.Enabled {
		if c.API.Port < 0 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 0 and 65535")
		}
		if c.API.Timeouts.Read < 0 || c.API.Timeouts.Write < 0 || c.API.Timeouts.Idle < 0 {
			errs = append(errs, "api.timeouts must not be negative")
		}
		if s := c.API.Auth.JWTSecret; s != "" && len(s) < minJWTSecretLength {
			errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
		}
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DisconnectQuiesce returns the client disconnect quiesce as a Duration.
func (c *Config) DisconnectQuiesce() time.Duration {
	return time.Duration(c.Client.DisconnectQuiesceMS) * time.Millisecond
}

// ConnectOptions returns a copy of the connect mapping, safe to hand to a
// client without later edits leaking into the loaded configuration.
func (c *Config) ConnectOptions() mqtt.Options {
	options := make(mqtt.Options, len(c.Connect))
	for k, v := range c.Connect {
		options[k] = v
	}
	return options
}
