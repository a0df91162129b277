package store

import (
	"testing"
	"time"
)

func TestClassifyHealth(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	staleAfter := 30 * time.Second

	tests := []struct {
		name   string
		agent  Agent
		health string
	}{
		{"just reported, active", Agent{Status: "active", LastSeen: now.Add(-1 * time.Second)}, "online"},
		{"at the online boundary", Agent{Status: "active", LastSeen: now.Add(-staleAfter)}, "online"},
		{"past online, within stale window", Agent{Status: "active", LastSeen: now.Add(-2 * staleAfter)}, "stale"},
		{"well past stale window", Agent{Status: "active", LastSeen: now.Add(-10 * staleAfter)}, "offline"},
		{"revoked agent is always offline regardless of last_seen", Agent{Status: "revoked", LastSeen: now}, "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHealth(tt.agent, now, staleAfter); got != tt.health {
				t.Errorf("classifyHealth() = %q, want %q", got, tt.health)
			}
		})
	}
}
