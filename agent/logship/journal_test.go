package logship

import "testing"

func TestJournalSeverityParsesPriorityField(t *testing.T) {
	if got := journalSeverity(map[string]string{"PRIORITY": "3"}); got != 3 {
		t.Fatalf("journalSeverity = %d, want 3", got)
	}
}

func TestJournalSeverityDefaultsToInfoWhenAbsent(t *testing.T) {
	if got := journalSeverity(map[string]string{}); got != 6 {
		t.Fatalf("journalSeverity = %d, want 6 (info)", got)
	}
}

func TestJournalSeverityDefaultsToInfoWhenMalformed(t *testing.T) {
	if got := journalSeverity(map[string]string{"PRIORITY": "not-a-number"}); got != 6 {
		t.Fatalf("journalSeverity = %d, want 6 (info)", got)
	}
}
