package commandexec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

func TestExecuteFanControlRejectsUnrecognizedMode(t *testing.T) {
	payload := json.RawMessage(`{"action":"set_bmc_mode","mode":"LUDICROUS"}`)
	_, err := ExecuteFanControl(context.Background(), payload)
	if err == nil {
		t.Fatal("expected an error for an unrecognized bmc mode")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.UnknownCommand {
		t.Fatalf("error = %v, want apierr.UnknownCommand", err)
	}
}

func TestExecuteFanControlRejectsMissingZones(t *testing.T) {
	payload := json.RawMessage(`{"action":"set_fan_speeds"}`)
	_, err := ExecuteFanControl(context.Background(), payload)
	if err == nil {
		t.Fatal("expected an error when zone0/zone1 are absent")
	}
}

func TestExecuteFanControlRejectsOutOfRangeZoneValue(t *testing.T) {
	payload := json.RawMessage(`{"action":"set_fan_speeds","zone0":150,"zone1":50}`)
	_, err := ExecuteFanControl(context.Background(), payload)
	if err == nil {
		t.Fatal("expected an error for a zone value outside 0..100")
	}
}

func TestExecuteFanControlRejectsUnrecognizedAction(t *testing.T) {
	payload := json.RawMessage(`{"action":"levitate"}`)
	_, err := ExecuteFanControl(context.Background(), payload)
	if err == nil {
		t.Fatal("expected an error for an unrecognized action")
	}
}

func TestExecuteFanControlRejectsMalformedPayload(t *testing.T) {
	_, err := ExecuteFanControl(context.Background(), json.RawMessage(`not-json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON payload")
	}
}
