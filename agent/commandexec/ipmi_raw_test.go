package commandexec

import (
	"context"
	"encoding/json"
	"testing"
)

func TestExecuteIPMIRawRejectsEmptyCommand(t *testing.T) {
	_, err := ExecuteIPMIRaw(context.Background(), json.RawMessage(`{"command":"   "}`))
	if err == nil {
		t.Fatal("expected an error for an empty command string")
	}
}

func TestExecuteIPMIRawRejectsMalformedPayload(t *testing.T) {
	_, err := ExecuteIPMIRaw(context.Background(), json.RawMessage(`not-json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON payload")
	}
}
