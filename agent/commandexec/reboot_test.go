package commandexec

import (
	"context"
	"encoding/json"
	"testing"
)

func TestExecuteRebootRejectsNegativeDelay(t *testing.T) {
	_, err := ExecuteReboot(context.Background(), json.RawMessage(`{"delay_sec":-1}`))
	if err == nil {
		t.Fatal("expected an error for a negative delay_sec")
	}
}

func TestExecuteRebootRejectsMalformedPayload(t *testing.T) {
	_, err := ExecuteReboot(context.Background(), json.RawMessage(`not-json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON payload")
	}
}
