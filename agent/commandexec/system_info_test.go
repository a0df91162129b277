package commandexec

import (
	"context"
	"encoding/json"
	"os"
	"testing"
)

func TestExecuteSystemInfoHostnameMatchesOSHostname(t *testing.T) {
	want, err := os.Hostname()
	if err != nil {
		t.Skipf("os.Hostname unavailable in this environment: %v", err)
	}

	out, err := ExecuteSystemInfo(context.Background(), json.RawMessage(`{"type":"hostname"}`))
	if err != nil {
		t.Fatalf("ExecuteSystemInfo() error = %v", err)
	}

	var resp struct {
		Hostname string `json:"hostname"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshaling result: %v", err)
	}
	if resp.Hostname != want {
		t.Fatalf("hostname = %q, want %q", resp.Hostname, want)
	}
}

func TestExecuteSystemInfoRejectsUnrecognizedType(t *testing.T) {
	_, err := ExecuteSystemInfo(context.Background(), json.RawMessage(`{"type":"nonsense"}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognized system_info type")
	}
}

func TestExecuteSystemInfoRejectsMalformedPayload(t *testing.T) {
	_, err := ExecuteSystemInfo(context.Background(), json.RawMessage(`not-json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON payload")
	}
}
