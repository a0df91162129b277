package commandexec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

func TestNewRegistryContainsEveryRecognizedCommandType(t *testing.T) {
	r := NewRegistry()
	for _, want := range []string{"fan_control", "ipmi_raw", "system_info", "reboot"} {
		if _, ok := r[want]; !ok {
			t.Errorf("registry missing command type %q", want)
		}
	}
}

func TestDispatchReturnsUnknownCommandForUnrecognizedType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "does_not_exist", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognized command type")
	}
	apiErr, ok := apierr.As(err)
	if !ok {
		t.Fatalf("error is not an *apierr.Error: %v", err)
	}
	if apiErr.Kind != apierr.UnknownCommand {
		t.Fatalf("error kind = %v, want %v", apiErr.Kind, apierr.UnknownCommand)
	}
}

func TestDispatchRoutesToRegisteredExecutor(t *testing.T) {
	called := false
	r := Registry{
		"noop": func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			called = true
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
	out, err := r.Dispatch(context.Background(), "noop", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !called {
		t.Fatal("expected the registered executor to run")
	}
	if string(out) != `{"ok":true}` {
		t.Fatalf("out = %s", out)
	}
}
