package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig  BasicConfig               `json:"basic_config"`
	Databases    map[string]DatabaseConfig `json:"databases"`
	Redis        RedisConfig               `json:"redis"`
	Providers    map[string]ProviderConfig `json:"providers"`
	Orchestrator OrchestratorConfig        `json:"orchestrator"`
	Twilio       TwilioConfig              `json:"twilio"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// OrchestratorConfig tunes the message pipeline.
type OrchestratorConfig struct {
	MaxHistory          int   `json:"max_history"`
	MaxToolHops         int   `json:"max_tool_hops"`
	ModelTimeoutSeconds int   `json:"model_timeout_seconds"`
	AIBotUserID         int64 `json:"ai_bot_user_id"`
}

type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
	BaseURL    string `json:"base_url"`
}

const (
	DefaultMaxHistory   = 50
	DefaultMaxToolHops  = 4
	DefaultModelTimeout = 30
	DefaultAIBotUserID  = -1
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Orchestrator.MaxHistory <= 0 {
		cfg.Orchestrator.MaxHistory = DefaultMaxHistory
	}
	if cfg.Orchestrator.MaxToolHops <= 0 {
		cfg.Orchestrator.MaxToolHops = DefaultMaxToolHops
	}
	if cfg.Orchestrator.ModelTimeoutSeconds <= 0 {
		cfg.Orchestrator.ModelTimeoutSeconds = DefaultModelTimeout
	}
	if cfg.Orchestrator.AIBotUserID == 0 {
		cfg.Orchestrator.AIBotUserID = DefaultAIBotUserID
	}
	if cfg.BasicConfig.MinWorkers <= 0 {
		cfg.BasicConfig.MinWorkers = 2
	}
	if cfg.BasicConfig.MaxWorkers < cfg.BasicConfig.MinWorkers {
		cfg.BasicConfig.MaxWorkers = cfg.BasicConfig.MinWorkers * 4
	}
	if cfg.BasicConfig.QueueSize <= 0 {
		cfg.BasicConfig.QueueSize = 64
	}
}
