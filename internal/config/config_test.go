package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000"},
		"databases": {"sqlite3": {"dsn": "./data/app.db"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("server address not read: %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Orchestrator.MaxHistory != DefaultMaxHistory {
		t.Fatalf("max history default missing: %d", cfg.Orchestrator.MaxHistory)
	}
	if cfg.Orchestrator.MaxToolHops != DefaultMaxToolHops {
		t.Fatalf("tool hop default missing: %d", cfg.Orchestrator.MaxToolHops)
	}
	if cfg.Orchestrator.ModelTimeoutSeconds != DefaultModelTimeout {
		t.Fatalf("model timeout default missing: %d", cfg.Orchestrator.ModelTimeoutSeconds)
	}
	if cfg.Orchestrator.AIBotUserID != DefaultAIBotUserID {
		t.Fatalf("bot user id default missing: %d", cfg.Orchestrator.AIBotUserID)
	}
	if cfg.BasicConfig.MinWorkers <= 0 || cfg.BasicConfig.MaxWorkers < cfg.BasicConfig.MinWorkers {
		t.Fatalf("worker defaults inconsistent: min=%d max=%d", cfg.BasicConfig.MinWorkers, cfg.BasicConfig.MaxWorkers)
	}
	if cfg.BasicConfig.QueueSize <= 0 {
		t.Fatalf("queue size default missing")
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"min_workers": 3, "max_workers": 9, "queue_size": 128},
		"orchestrator": {"max_history": 10, "max_tool_hops": 2, "model_timeout_seconds": 5, "ai_bot_user_id": -7},
		"providers": {"openai": {"base_url": "https://example.test/v1", "model": "gpt-4o-mini", "api_key": "k"}},
		"twilio": {"account_sid": "AC1", "auth_token": "t", "from_number": "+1000"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orchestrator.MaxHistory != 10 || cfg.Orchestrator.MaxToolHops != 2 {
		t.Fatalf("orchestrator values overridden: %#v", cfg.Orchestrator)
	}
	if cfg.Orchestrator.AIBotUserID != -7 {
		t.Fatalf("bot user id overridden: %d", cfg.Orchestrator.AIBotUserID)
	}
	if cfg.BasicConfig.MinWorkers != 3 || cfg.BasicConfig.MaxWorkers != 9 {
		t.Fatalf("worker values overridden: %#v", cfg.BasicConfig)
	}
	prov, ok := cfg.Providers["openai"]
	if !ok || prov.Model != "gpt-4o-mini" {
		t.Fatalf("provider block not read: %#v", cfg.Providers)
	}
	if cfg.Twilio.AccountSID != "AC1" {
		t.Fatalf("twilio block not read: %#v", cfg.Twilio)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected open error")
	}
}
