package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Agent holds the edge agent's configuration: where to push, how often to
// collect, which log sources to ship, and where persisted enrollment state
// (keypair, bearer token, log cursors) lives on disk.
type Agent struct {
	ServerURL string `yaml:"server_url" env:"NIGHTWATCH_SERVER_URL"`
	AgentID   string `yaml:"agent_id" env:"NIGHTWATCH_AGENT_ID"`
	Hostname  string `yaml:"hostname" env:"NIGHTWATCH_HOSTNAME"`
	AuthDir   string `yaml:"auth_dir" env:"NIGHTWATCH_AUTH_DIR"`

	AdminToken string `yaml:"admin_token" env:"NIGHTWATCH_ADMIN_TOKEN"`

	CollectIntervalSec int `yaml:"collect_interval_sec" env:"NIGHTWATCH_COLLECT_INTERVAL_SEC"`
	LogPollIntervalSec int `yaml:"log_poll_interval_sec" env:"NIGHTWATCH_LOG_POLL_INTERVAL_SEC"`
	CommandPollSec     int `yaml:"command_poll_sec" env:"NIGHTWATCH_COMMAND_POLL_SEC"`

	LogBackfillCount  int      `yaml:"log_backfill_count" env:"NIGHTWATCH_LOG_BACKFILL_COUNT"`
	LogSeverityFloor  string   `yaml:"log_severity_floor" env:"NIGHTWATCH_LOG_SEVERITY_FLOOR"`
	EnabledLogSources []string `yaml:"enabled_log_sources" env:"NIGHTWATCH_LOG_SOURCES" envSeparator:","`
	SyslogPath        string   `yaml:"syslog_path" env:"NIGHTWATCH_SYSLOG_PATH"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"NIGHTWATCH_INSECURE_SKIP_VERIFY"`

	LogLevel  string `yaml:"log_level" env:"NIGHTWATCH_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"NIGHTWATCH_LOG_FORMAT"`
}

func defaultAgent() Agent {
	return Agent{
		ServerURL:          "https://localhost:8443",
		AuthDir:            "/etc/nightwatch/auth",
		CollectIntervalSec: 15,
		LogPollIntervalSec: 10,
		CommandPollSec:     30,
		LogBackfillCount:   1000,
		LogSeverityFloor:   "INFO",
		EnabledLogSources:  []string{"kernel", "journal", "syslog"},
		SyslogPath:         "/var/log/syslog",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadAgent reads agent configuration the same way LoadServer does: YAML
// defaults, then env-var overrides.
func LoadAgent(path string) (*Agent, error) {
	cfg := defaultAgent()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if cfg.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Hostname = h
		}
	}
	if cfg.AgentID == "" {
		cfg.AgentID = cfg.Hostname
	}

	return &cfg, nil
}

// CollectInterval returns the exporter cadence as a time.Duration.
func (a *Agent) CollectInterval() time.Duration {
	return time.Duration(a.CollectIntervalSec) * time.Second
}

// LogPollInterval returns the log-shipping cadence as a time.Duration.
func (a *Agent) LogPollInterval() time.Duration {
	return time.Duration(a.LogPollIntervalSec) * time.Second
}

// CommandPollInterval returns the command long-poll cadence, clamped to the
// spec's 90-second ceiling.
func (a *Agent) CommandPollInterval() time.Duration {
	sec := a.CommandPollSec
	if sec <= 0 || sec > 90 {
		sec = 90
	}
	return time.Duration(sec) * time.Second
}
