package store

import "testing"

func TestTransitionAllowedFollowsLifecycle(t *testing.T) {
	tests := []struct {
		from, to CommandStatus
		ok       bool
	}{
		{CommandPending, CommandDelivered, true},
		{CommandPending, CommandExpired, true},
		{CommandDelivered, CommandExecuting, true},
		{CommandDelivered, CommandCompleted, true},
		{CommandDelivered, CommandExpired, true},
		{CommandExecuting, CommandCompleted, true},
		{CommandExecuting, CommandFailed, true},

		{CommandCompleted, CommandExecuting, false},
		{CommandFailed, CommandCompleted, false},
		{CommandExpired, CommandDelivered, false},
		{CommandExecuting, CommandPending, false},
		{CommandPending, CommandExecuting, false},
		{CommandPending, CommandCompleted, false},
	}

	for _, tt := range tests {
		if got := transitionAllowed(tt.from, tt.to); got != tt.ok {
			t.Errorf("transitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTransitionNeverAllowsBackwardMovement(t *testing.T) {
	order := []CommandStatus{CommandPending, CommandDelivered, CommandExecuting, CommandCompleted}
	for i := range order {
		for j := 0; j < i; j++ {
			if transitionAllowed(order[i], order[j]) {
				t.Errorf("expected %s -> %s to be disallowed (backward move)", order[i], order[j])
			}
		}
	}
}
