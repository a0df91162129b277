package commandexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

type systemInfoPayload struct {
	Type string `json:"type"`
}

// ExecuteSystemInfo answers one-shot queries about the host, per spec
// §4.6's `system_info` command type.
func ExecuteSystemInfo(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p systemInfoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apierr.Wrap(apierr.UnknownCommand, "malformed system_info payload", err)
	}

	switch p.Type {
	case "hostname":
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("reading hostname: %w", err)
		}
		return json.Marshal(map[string]string{"hostname": host})

	case "kernel":
		out, err := exec.CommandContext(ctx, "uname", "-r").CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("reading kernel version: %w", err)
		}
		return json.Marshal(map[string]string{"release": strings.TrimSpace(string(out))})

	case "uptime":
		var info unix.Sysinfo_t
		if err := unix.Sysinfo(&info); err != nil {
			return nil, fmt.Errorf("reading uptime: %w", err)
		}
		uptime := time.Duration(info.Uptime) * time.Second
		return json.Marshal(map[string]string{"uptime": uptime.String()})

	default:
		return nil, apierr.New(apierr.UnknownCommand, fmt.Sprintf("unrecognized system_info type %q", p.Type))
	}
}
