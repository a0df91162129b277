package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	if err != nil {
		t.Fatalf("LoadServer(\"\") returned error: %v", err)
	}
	if cfg.Port != 8443 {
		t.Errorf("expected default port 8443, got %d", cfg.Port)
	}
	if cfg.MetricsRetentionDays != 30 {
		t.Errorf("expected default metrics retention 30 days, got %d", cfg.MetricsRetentionDays)
	}
}

func TestLoadServerYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	yamlContent := "port: 9443\nmetrics_retention_days: 90\ntest_mode: true\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer returned error: %v", err)
	}
	if cfg.Port != 9443 {
		t.Errorf("expected port 9443 from YAML, got %d", cfg.Port)
	}
	if cfg.MetricsRetentionDays != 90 {
		t.Errorf("expected metrics retention 90 from YAML, got %d", cfg.MetricsRetentionDays)
	}
	if !cfg.TestMode {
		t.Errorf("expected test_mode true from YAML")
	}
}

func TestLoadServerEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("port: 9443\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NIGHTWATCH_PORT", "7000")

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer returned error: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("expected env override to win: port 7000, got %d", cfg.Port)
	}
}

func TestApplyFlagsOnlyOverridesWhenSet(t *testing.T) {
	cfg, err := LoadServer("")
	if err != nil {
		t.Fatal(err)
	}
	originalHost := cfg.Host

	emptyHost := ""
	cfg.ApplyFlags(&emptyHost, nil)
	if cfg.Host != originalHost {
		t.Errorf("empty flag value must not clobber config, got %q", cfg.Host)
	}

	newHost := "127.0.0.1"
	cfg.ApplyFlags(&newHost, nil)
	if cfg.Host != newHost {
		t.Errorf("explicit flag value must override config, got %q", cfg.Host)
	}
}

func TestLoadServerMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadServer("/nonexistent/path/server.yaml")
	if err != nil {
		t.Fatalf("missing config file should not error, got: %v", err)
	}
	if cfg.Port != 8443 {
		t.Errorf("expected defaults when config file is absent, got port %d", cfg.Port)
	}
}

func TestLoadAgentDerivesAgentIDFromHostname(t *testing.T) {
	cfg, err := LoadAgent("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AgentID == "" {
		t.Errorf("expected agent_id to default to hostname")
	}
	if cfg.AgentID != cfg.Hostname {
		t.Errorf("expected agent_id == hostname by default, got %q vs %q", cfg.AgentID, cfg.Hostname)
	}
}

func TestCommandPollIntervalClampedTo90Seconds(t *testing.T) {
	cfg := Agent{CommandPollSec: 500}
	if got := cfg.CommandPollInterval().Seconds(); got != 90 {
		t.Errorf("expected clamp to 90s, got %v", got)
	}
}
