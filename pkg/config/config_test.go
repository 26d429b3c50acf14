package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsSelfConsistent(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Errorf("expected Default() to be valid, got %v", err)
	}
	if cfg.GetAddr() != "0.0.0.0:3071" {
		t.Errorf("unexpected address: %s", cfg.GetAddr())
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	path := writeTestConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
  environment: production
ai:
  default_difficulty: 4
  llm_timeout: 5s
socket:
  max_missed_pongs: 3
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.AI.DefaultDifficulty != 4 {
		t.Errorf("expected default difficulty 4, got %d", cfg.AI.DefaultDifficulty)
	}
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Error("expected loading a missing config file to fail")
	}
}

func TestLoadConfigRejectsInvalidPort(t *testing.T) {
	path := writeTestConfig(t, `
server:
  port: 0
socket:
  max_missed_pongs: 3
ai:
  llm_timeout: 1s
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a port of 0 to fail validation")
	}
}

func TestLoadConfigRejectsZeroLLMTimeout(t *testing.T) {
	path := writeTestConfig(t, `
server:
  port: 3071
socket:
  max_missed_pongs: 3
ai:
  llm_timeout: 0s
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a zero ai.llm_timeout to fail validation")
	}
}

func TestApplyEnvironmentOverridesHonorsBattlePort(t *testing.T) {
	t.Setenv("BATTLE_PORT", "4500")
	path := writeTestConfig(t, `
server:
  port: 3071
  environment: production
socket:
  max_missed_pongs: 3
ai:
  llm_timeout: 1s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 4500 {
		t.Errorf("expected BATTLE_PORT to override the configured port, got %d", cfg.Server.Port)
	}
}

func TestApplyEnvironmentOverridesDefaultsDevelopmentToDebugLogging(t *testing.T) {
	path := writeTestConfig(t, `
server:
  port: 3071
  environment: development
socket:
  max_missed_pongs: 3
ai:
  llm_timeout: 1s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected a development environment with no explicit log level to default to debug, got %q", cfg.Logging.Level)
	}
}

func TestApplyEnvironmentOverridesLogLevelWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	path := writeTestConfig(t, `
server:
  port: 3071
  environment: production
socket:
  max_missed_pongs: 3
ai:
  llm_timeout: 1s
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected LOG_LEVEL to set the logging level, got %q", cfg.Logging.Level)
	}
}

func TestLLMEnabledReflectsAPIKeyPresence(t *testing.T) {
	original, had := os.LookupEnv("LLM_API_KEY")
	os.Unsetenv("LLM_API_KEY")
	t.Cleanup(func() {
		if had {
			os.Setenv("LLM_API_KEY", original)
		} else {
			os.Unsetenv("LLM_API_KEY")
		}
	})

	if LLMEnabled() {
		t.Error("expected LLMEnabled to be false without an API key")
	}

	os.Setenv("LLM_API_KEY", "secret-key")
	if !LLMEnabled() {
		t.Error("expected LLMEnabled to be true once an API key is set")
	}
}
