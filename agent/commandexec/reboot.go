package commandexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

type rebootPayload struct {
	DelaySec int `json:"delay_sec"`
}

// ExecuteReboot schedules a reboot via `shutdown -r +<minutes>`, per spec
// §4.6's `reboot` command type. delay_sec is rounded up to whole minutes
// since `shutdown` has no finer resolution; a zero delay reboots
// immediately (`shutdown -r now`).
func ExecuteReboot(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p rebootPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apierr.Wrap(apierr.UnknownCommand, "malformed reboot payload", err)
	}
	if p.DelaySec < 0 {
		return nil, apierr.New(apierr.UnknownCommand, "delay_sec must not be negative")
	}

	when := "now"
	if p.DelaySec > 0 {
		minutes := (p.DelaySec + 59) / 60
		when = "+" + strconv.Itoa(minutes)
	}

	out, err := exec.CommandContext(ctx, "shutdown", "-r", when).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("scheduling reboot: %w: %s", err, string(out))
	}
	return json.Marshal(map[string]string{"scheduled": when})
}
