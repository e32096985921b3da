package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Voicematch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Security  SecurityConfig  `yaml:"security"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig          `yaml:"cors"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket monitoring endpoint settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer authentication settings. An empty secret
// disables authentication, intended for trusted-network deployments.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains match telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite audit log settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MatcherConfig contains engine weights, thresholds, and limits.
type MatcherConfig struct {
	Weights             WeightsConfig    `yaml:"weights"`
	Thresholds          ThresholdsConfig `yaml:"thresholds"`
	TopK                int              `yaml:"top_k"`
	DisambiguationGap   float64          `yaml:"disambiguation_gap"`
	StrictRoomMatch     bool             `yaml:"strict_room_match"`
	NormalizeCacheSize  int              `yaml:"normalize_cache_size"`
	SimilarityCacheSize int              `yaml:"similarity_cache_size"`
}

// WeightsConfig contains per-field composite weights.
type WeightsConfig struct {
	Floor float64 `yaml:"floor"`
	Room  float64 `yaml:"room"`
	Name  float64 `yaml:"name"`
	Type  float64 `yaml:"type"`
}

// ThresholdsConfig contains per-field gating thresholds.
type ThresholdsConfig struct {
	Floor float64 `yaml:"floor"`
	Room  float64 `yaml:"room"`
	Type  float64 `yaml:"type"`
	Name  float64 `yaml:"name"`
}

// AdvisorConfig contains external LLM suggestion escalation settings.
type AdvisorConfig struct {
	Enabled           bool    `yaml:"enabled"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxEntities       int     `yaml:"max_entities"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Environment variables follow the pattern: VOICEMATCH_SECTION_KEY
// For example: VOICEMATCH_DATABASE_PATH, VOICEMATCH_ADVISOR_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults: HTTP only, no MQTT,
// no telemetry, no audit log, matcher at standard weights.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "voicematch",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/voicematch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Matcher: MatcherConfig{
			Weights:             WeightsConfig{Floor: 0.15, Room: 0.40, Name: 0.30, Type: 0.15},
			Thresholds:          ThresholdsConfig{Floor: 0.70, Room: 0.70, Type: 0.65, Name: 0.45},
			TopK:                100,
			DisambiguationGap:   0.08,
			NormalizeCacheSize:  1000,
			SimilarityCacheSize: 500,
		},
		Advisor: AdvisorConfig{
			Model:             "gpt-3.5-turbo",
			TimeoutSeconds:    10,
			MaxEntities:       20,
			RequestsPerSecond: 3,
			Burst:             5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Environment variables follow the pattern: VOICEMATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("VOICEMATCH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VOICEMATCH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Security
	if v := os.Getenv("VOICEMATCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// MQTT
	if v := os.Getenv("VOICEMATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VOICEMATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VOICEMATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("VOICEMATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("VOICEMATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Advisor - API key should come from the environment, not the file
	if v := os.Getenv("VOICEMATCH_ADVISOR_API_KEY"); v != "" {
		cfg.Advisor.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Advisor.APIKey == "" {
		cfg.Advisor.APIKey = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set VOICEMATCH_INFLUXDB_TOKEN)")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the audit log is enabled")
	}

	// Bearer auth is optional, but a configured secret must be strong
	// enough to resist brute force.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	m := c.Matcher
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"matcher.weights.floor", m.Weights.Floor},
		{"matcher.weights.room", m.Weights.Room},
		{"matcher.weights.name", m.Weights.Name},
		{"matcher.weights.type", m.Weights.Type},
	} {
		if w.value < 0 {
			errs = append(errs, w.name+" must not be negative")
		}
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"matcher.thresholds.floor", m.Thresholds.Floor},
		{"matcher.thresholds.room", m.Thresholds.Room},
		{"matcher.thresholds.type", m.Thresholds.Type},
		{"matcher.thresholds.name", m.Thresholds.Name},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, th.name+" must be in [0,1]")
		}
	}
	if m.TopK < 1 {
		errs = append(errs, "matcher.top_k must be at least 1")
	}
	if m.DisambiguationGap < 0 || m.DisambiguationGap > 1 {
		errs = append(errs, "matcher.disambiguation_gap must be in [0,1]")
	}

	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		errs = append(errs, "advisor.api_key is required when the advisor is enabled (set VOICEMATCH_ADVISOR_API_KEY)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetAdvisorTimeout returns the advisor call timeout as a Duration.
func (c *Config) GetAdvisorTimeout() time.Duration {
	return time.Duration(c.Advisor.TimeoutSeconds) * time.Second
}
