package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alkorolyov/dcmon/agent/commandexec"
	"github.com/alkorolyov/dcmon/agent/logship"
	"github.com/alkorolyov/dcmon/internal/config"
)

const clientTokenFile = "client_token"

// Runtime supervises every agent-side goroutine: metric collection and
// push, log shipping, and command poll/execute, per spec §4.7 and
// SPEC_FULL.md's errgroup-based agent coroutine model.
type Runtime struct {
	cfg    *config.Agent
	client *Client
	keys   *KeyPair
	logger *slog.Logger

	exporters  []Exporter
	logSources []logship.Source
	commands   commandexec.Registry

	pusher *Pusher
}

// NewRuntime wires a Runtime from agent configuration: loads or generates
// the enrollment keypair, builds the HTTP client, and registers the
// illustrative exporters and log sources SPEC_FULL.md's Exporter glossary
// entry describes.
func NewRuntime(cfg *config.Agent, logger *slog.Logger) (*Runtime, error) {
	if err := os.MkdirAll(cfg.AuthDir, 0700); err != nil {
		return nil, fmt.Errorf("creating auth dir: %w", err)
	}

	keys, err := LoadOrCreateKeyPair(cfg.AuthDir)
	if err != nil {
		return nil, fmt.Errorf("loading keypair: %w", err)
	}

	client := NewClient(cfg.ServerURL, cfg.InsecureSkipVerify)

	severityFloor := severityFromName(cfg.LogSeverityFloor)
	var logSources []logship.Source
	for _, source := range cfg.EnabledLogSources {
		switch source {
		case "kernel":
			logSources = append(logSources, logship.NewKernelSource(severityFloor))
		case "journal":
			logSources = append(logSources, logship.NewJournalSource(severityFloor))
		case "syslog":
			logSources = append(logSources, logship.NewSyslogSource(cfg.SyslogPath, severityFloor, time.Local))
		}
	}

	rt := &Runtime{
		cfg:    cfg,
		client: client,
		keys:   keys,
		logger: logger,
		exporters: []Exporter{
			NewLoadAverageExporter(),
			NewDiskUsageExporter([]string{"/"}),
		},
		logSources: logSources,
		commands:   commandexec.NewRegistry(),
		pusher:     NewPusher(client, cfg.AgentID, logger),
	}
	return rt, nil
}

// Run enrolls (if needed) and then either performs a single collection
// cycle (once=true, per the --once CLI flag) or supervises the steady-
// state goroutines until ctx is cancelled.
func (rt *Runtime) Run(ctx context.Context, once bool) error {
	if err := rt.ensureEnrolled(ctx); err != nil {
		return fmt.Errorf("enrollment: %w", err)
	}

	if once {
		rt.collectAndPush(ctx)
		rt.shipLogs(ctx)
		rt.pollAndExecuteCommands(ctx)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(rt.cfg.CollectInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rt.collectAndPush(gctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(rt.cfg.LogPollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rt.shipLogs(gctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(rt.cfg.CommandPollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				rt.pollAndExecuteCommands(gctx)
			}
		}
	})

	return g.Wait()
}

func (rt *Runtime) collectAndPush(ctx context.Context) {
	samples, errs := collectAll(ctx, rt.exporters, time.Now())
	for _, err := range errs {
		rt.logger.Warn("exporter error", "error", err)
	}
	if err := rt.pusher.Push(ctx, samples); err != nil {
		rt.logger.Warn("push cycle failed", "error", err)
	}
}

func (rt *Runtime) shipLogs(ctx context.Context) {
	for _, src := range rt.logSources {
		entries, commit, err := logship.Ship(src, rt.cfg.AuthDir, rt.cfg.LogBackfillCount)
		if err != nil {
			rt.logger.Warn("log source collection failed", "source", src.Name(), "error", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		wire := make([]LogEntryWire, len(entries))
		for i, e := range entries {
			wire[i] = LogEntryWire{
				Source:     e.Source,
				Ts:         e.TimestampUTCSec,
				Severity:   e.Severity,
				Message:    e.Message,
				Unit:       e.Unit,
				Identifier: e.Identifier,
				PID:        e.PID,
			}
		}

		err = rt.client.PushLogs(ctx, LogBatchWire{AgentID: rt.cfg.AgentID, Entries: wire})
		if err != nil {
			rt.logger.Warn("log push failed, cursor not advanced", "source", src.Name(), "error", err)
			continue
		}
		if err := commit(); err != nil {
			rt.logger.Warn("persisting log cursor failed", "source", src.Name(), "error", err)
		}
	}
}

func (rt *Runtime) pollAndExecuteCommands(ctx context.Context) {
	cmds, err := rt.client.PollCommands(ctx, rt.cfg.AgentID)
	if err != nil {
		rt.logger.Warn("command poll failed", "error", err)
		return
	}

	for _, cmd := range cmds {
		execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, execErr := rt.commands.Dispatch(execCtx, cmd.Type, cmd.Payload)
		cancel()

		report := CommandResultWire{CommandID: cmd.CommandID}
		if execErr != nil {
			report.Status = "failed"
			report.Error = execErr.Error()
			rt.logger.Warn("command execution failed", "command_id", cmd.CommandID, "type", cmd.Type, "error", execErr)
		} else {
			report.Status = "completed"
			report.Result = json.RawMessage(result)
		}

		if err := rt.client.SubmitResult(ctx, report); err != nil {
			rt.logger.Warn("submitting command result failed", "command_id", cmd.CommandID, "error", err)
		}
	}
}

// ensureEnrolled loads a persisted bearer token and confirms it still
// verifies; if none exists or verification fails, it runs the full
// registration handshake and persists the returned token, per spec §6.3.
func (rt *Runtime) ensureEnrolled(ctx context.Context) error {
	tokenPath := filepath.Join(rt.cfg.AuthDir, clientTokenFile)

	if data, err := os.ReadFile(tokenPath); err == nil {
		rt.client.SetBearerToken(string(data))
		if err := rt.client.Verify(ctx); err == nil {
			return nil
		}
		rt.logger.Warn("persisted bearer token no longer verifies, re-registering")
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading client token: %w", err)
	}

	req, err := BuildRegistration(rt.cfg.AgentID, rt.cfg.Hostname, rt.cfg.AdminToken, rt.keys, time.Now())
	if err != nil {
		return err
	}

	token, err := rt.client.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}

	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("persisting client token: %w", err)
	}
	rt.client.SetBearerToken(token)
	return nil
}

// severityFromName maps a config-level severity name to its syslog-scale
// numeric floor; unrecognized names fall back to "info" (6).
func severityFromName(name string) int16 {
	switch name {
	case "EMERG":
		return 0
	case "ALERT":
		return 1
	case "CRIT":
		return 2
	case "ERR", "ERROR":
		return 3
	case "WARNING", "WARN":
		return 4
	case "NOTICE":
		return 5
	case "INFO":
		return 6
	case "DEBUG":
		return 7
	default:
		return 6
	}
}
