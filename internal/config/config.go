package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aelgin/circadiand/internal/timeline"
)

// Config represents the application configuration
type Config struct {
	Bridge          BridgeConfig      `yaml:"bridge"`
	Geo             GeoConfig         `yaml:"geo"`
	Engine          EngineConfig      `yaml:"engine"`
	Phases          PhasesConfig      `yaml:"phases"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"`
}

// BridgeConfig contains Hue bridge connection settings
type BridgeConfig struct {
	Host string `yaml:"host"`
	User string `yaml:"user"`
}

// IsConfigured returns true when a paired bridge is set up.
func (c *BridgeConfig) IsConfigured() bool {
	return c.Host != "" && c.User != ""
}

// GeoConfig optionally seeds the scheduler location at boot, so the daemon
// arms without waiting for an UpdateLocation call. Pointer fields distinguish
// "not configured" from a legitimate (0, 0) coordinate.
type GeoConfig struct {
	Lat *float64 `yaml:"lat,omitempty"`
	Lon *float64 `yaml:"lon,omitempty"`
}

// IsSet returns true when a seed coordinate is present.
func (c *GeoConfig) IsSet() bool {
	return c.Lat != nil && c.Lon != nil
}

// EngineConfig contains scheduler and dispatch settings
type EngineConfig struct {
	TickInterval Duration `yaml:"tick_interval"`
	RateLimitRPS float64  `yaml:"rate_limit_rps"`
}

// PhasesConfig overrides the default per-phase light targets
type PhasesConfig struct {
	Night *timeline.Target `yaml:"night,omitempty"`
	Dawn  *timeline.Target `yaml:"dawn,omitempty"`
	Day   *timeline.Target `yaml:"day,omitempty"`
	Dusk  *timeline.Target `yaml:"dusk,omitempty"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains the optional change notifier settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Targets merges the configured phase overrides with the defaults.
func (c *PhasesConfig) Targets() timeline.Targets {
	targets := timeline.DefaultTargets()
	if c.Night != nil {
		targets["night"] = *c.Night
	}
	if c.Dawn != nil {
		targets["dawn"] = *c.Dawn
	}
	if c.Day != nil {
		targets["day"] = *c.Day
	}
	if c.Dusk != nil {
		targets["dusk"] = *c.Dusk
	}
	return targets
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./circadiand.sqlite"
	}

	// Engine defaults
	if cfg.Engine.TickInterval == 0 {
		cfg.Engine.TickInterval = Duration(time.Minute)
	}
	if cfg.Engine.RateLimitRPS == 0 {
		cfg.Engine.RateLimitRPS = 10.0 // 10 requests per second
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// MQTT defaults
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "circadiand"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "circadiand"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
