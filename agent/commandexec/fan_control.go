package commandexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

// bmcModeRawValues maps the fan_control set_bmc_mode enum to the raw
// ipmitool payload byte Dell/Supermicro BMCs expect for each preset, the
// same convention datacenter fleet tools shell out to ipmitool for.
var bmcModeRawValues = map[string]string{
	"STANDARD": "0x00",
	"FULL":     "0x01",
	"OPTIMAL":  "0x02",
	"HEAVY_IO": "0x04",
}

type fanControlPayload struct {
	Action string `json:"action"`
	Mode   string `json:"mode"`
	Zone0  *int   `json:"zone0"`
	Zone1  *int   `json:"zone1"`
}

// ExecuteFanControl handles the fan_control command type's three actions:
// set_bmc_mode, set_fan_speeds, get_status, per spec §4.6.
func ExecuteFanControl(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p fanControlPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apierr.Wrap(apierr.UnknownCommand, "malformed fan_control payload", err)
	}

	switch p.Action {
	case "set_bmc_mode":
		raw, ok := bmcModeRawValues[p.Mode]
		if !ok {
			return nil, apierr.New(apierr.UnknownCommand, fmt.Sprintf("unrecognized bmc mode %q", p.Mode))
		}
		out, err := runIPMITool(ctx, "raw", "0x30", "0x30", "0x01", raw)
		if err != nil {
			return nil, fmt.Errorf("setting bmc mode: %w", err)
		}
		return json.Marshal(map[string]string{"output": out})

	case "set_fan_speeds":
		if p.Zone0 == nil || p.Zone1 == nil {
			return nil, apierr.New(apierr.UnknownCommand, "set_fan_speeds requires zone0 and zone1")
		}
		if *p.Zone0 < 0 || *p.Zone0 > 100 || *p.Zone1 < 0 || *p.Zone1 > 100 {
			return nil, apierr.New(apierr.UnknownCommand, "fan zone values must be within 0..100")
		}
		out0, err := runIPMITool(ctx, "raw", "0x30", "0x30", "0x02", "0x00", fmt.Sprintf("0x%02x", *p.Zone0))
		if err != nil {
			return nil, fmt.Errorf("setting zone0 speed: %w", err)
		}
		out1, err := runIPMITool(ctx, "raw", "0x30", "0x30", "0x02", "0x01", fmt.Sprintf("0x%02x", *p.Zone1))
		if err != nil {
			return nil, fmt.Errorf("setting zone1 speed: %w", err)
		}
		return json.Marshal(map[string]string{"zone0": out0, "zone1": out1})

	case "get_status":
		out, err := runIPMITool(ctx, "sdr", "type", "Fan")
		if err != nil {
			return nil, fmt.Errorf("reading fan status: %w", err)
		}
		return json.Marshal(map[string]string{"status": out})

	default:
		return nil, apierr.New(apierr.UnknownCommand, fmt.Sprintf("unrecognized fan_control action %q", p.Action))
	}
}

func runIPMITool(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "ipmitool", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ipmitool %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}
