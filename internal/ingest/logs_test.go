package ingest

import (
	"context"
	"testing"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

func TestLogsIngestRejectsMismatchedAgentID(t *testing.T) {
	l := NewLogs(nil, nil)

	err := l.Ingest(context.Background(), "agent-a", LogBatch{AgentID: "agent-b"})
	if err == nil {
		t.Fatal("expected an error for mismatched agent_id")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.Forbidden {
		t.Fatalf("expected Forbidden apierr, got %v", err)
	}
}
