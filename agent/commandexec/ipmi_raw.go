package commandexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

type ipmiRawPayload struct {
	Command string `json:"command"`
}

// ExecuteIPMIRaw shells out `ipmitool raw <bytes>` for an operator-supplied
// hex byte string, per spec §4.6's `ipmi_raw` command type. This is the
// one command type that executes an admin-chosen arbitrary raw IPMI
// request rather than a fixed, validated action — the hex string is
// passed through as-is, matching the spec's minimal schema.
func ExecuteIPMIRaw(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p ipmiRawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apierr.Wrap(apierr.UnknownCommand, "malformed ipmi_raw payload", err)
	}

	bytesHex := strings.Fields(p.Command)
	if len(bytesHex) == 0 {
		return nil, apierr.New(apierr.UnknownCommand, "ipmi_raw command must not be empty")
	}

	args := append([]string{"raw"}, bytesHex...)
	out, err := runIPMITool(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("executing ipmi raw command: %w", err)
	}
	return json.Marshal(map[string]string{"output": out})
}
