package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Socket  SocketConfig  `yaml:"socket"`
	Room    RoomConfig    `yaml:"room"`
	AI      AIConfig      `yaml:"ai"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig contains HTTP/listener settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

// SocketConfig contains per-connection websocket settings.
type SocketConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	MaxMissedPongs     int           `yaml:"max_missed_pongs"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	MaxMessageSize     int64         `yaml:"max_message_size"`
	SendQueueSize      int           `yaml:"send_queue_size"`
	InboundRatePerSec  float64       `yaml:"inbound_rate_per_sec"`
	InboundBurst       int           `yaml:"inbound_burst"`
}

// RoomConfig contains room/match lifecycle settings.
type RoomConfig struct {
	IdleSweepInterval time.Duration `yaml:"idle_sweep_interval"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	DefaultFormatID   string        `yaml:"default_format_id"`
}

// AIConfig contains AI decision-engine settings.
type AIConfig struct {
	DefaultDifficulty int           `yaml:"default_difficulty"`
	LLMTimeout        time.Duration `yaml:"llm_timeout"`
	LLMEndpoint       string        `yaml:"llm_endpoint"`
	KnowledgeBaseAddr string        `yaml:"knowledge_base_addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	ShowCaller bool   `yaml:"show_caller"`
}

// AuditConfig contains settings for the sqlite-backed audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig loads configuration from a YAML file, applying a .env file
// (if present) and environment-variable overrides on top.
func LoadConfig(filename string) (*Config, error) {
	// Best-effort: a missing .env is not an error, it just means the
	// environment is expected to already be populated (e.g. in prod).
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3071,
			Environment: "development",
		},
		Socket: SocketConfig{
			HeartbeatInterval: 5 * time.Second,
			MaxMissedPongs:    3,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      10 * time.Second,
			MaxMessageSize:    8192,
			SendQueueSize:     256,
			InboundRatePerSec: 20,
			InboundBurst:      40,
		},
		Room: RoomConfig{
			IdleSweepInterval: 5 * time.Minute,
			IdleTimeout:       30 * time.Minute,
			DefaultFormatID:   "gen9ou",
		},
		AI: AIConfig{
			DefaultDifficulty: 2,
			LLMTimeout:        8 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "./data/audit.db",
		},
	}
}

// applyEnvironmentOverrides applies the BATTLE_PORT and LOG_LEVEL
// environment variables named in spec.md §6. LLM_API_KEY is not read
// here: LLMEnabled and the LLM client read it directly.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("BATTLE_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.Port)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if c.Server.Environment == "development" {
		c.Logging.Level = cmp(c.Logging.Level, "debug")
	}
}

func cmp(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

// validate checks if the configuration is self-consistent.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}

	if c.Socket.MaxMissedPongs < 1 {
		return fmt.Errorf("max_missed_pongs must be at least 1")
	}

	if c.AI.LLMTimeout <= 0 {
		return fmt.Errorf("ai.llm_timeout must be positive")
	}

	return nil
}

// GetAddr returns the server address in host:port format.
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LLMEnabled reports whether tier-5 AI should attempt an LLM call, per
// spec.md §6: LLM_API_KEY enables tier 5.
func LLMEnabled() bool {
	return os.Getenv("LLM_API_KEY") != ""
}
