// Package commandexec implements the agent-side handlers for the command
// types recognized by spec §4.6: fan_control, ipmi_raw, system_info, and
// reboot. Payloads that don't match a recognized schema fail at execution
// time with apierr.UnknownCommand, exactly as the spec prescribes.
package commandexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

// Executor runs one command type against its JSON payload and returns a
// JSON result or an error. Execution is time-bounded by ctx's deadline,
// per spec §4.6 ("time-bounded per command type").
type Executor func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Registry dispatches a command's `type` field to its Executor.
type Registry map[string]Executor

// NewRegistry returns the registry of every recognized command type.
func NewRegistry() Registry {
	return Registry{
		"fan_control": ExecuteFanControl,
		"ipmi_raw":    ExecuteIPMIRaw,
		"system_info": ExecuteSystemInfo,
		"reboot":      ExecuteReboot,
	}
}

// Dispatch looks up cmdType and runs it. An unrecognized type returns
// apierr.UnknownCommand rather than panicking or silently no-opping, per
// spec §4.6: "payloads not matching a recognized schema ... will fail with
// UnknownCommand on execution".
func (r Registry) Dispatch(ctx context.Context, cmdType string, payload json.RawMessage) (json.RawMessage, error) {
	exec, ok := r[cmdType]
	if !ok {
		return nil, apierr.New(apierr.UnknownCommand, fmt.Sprintf("unrecognized command type %q", cmdType))
	}
	return exec(ctx, payload)
}
