package logship

import (
	"testing"
	"time"
)

func TestSyslogCursorRoundTripsThroughString(t *testing.T) {
	c := syslogCursor{inode: 42, offset: 1234}
	parsed, ok := parseSyslogCursor(c.String())
	if !ok {
		t.Fatal("expected parseSyslogCursor to succeed on its own String() output")
	}
	if parsed != c {
		t.Fatalf("parsed = %+v, want %+v", parsed, c)
	}
}

func TestParseSyslogCursorRejectsMalformed(t *testing.T) {
	if _, ok := parseSyslogCursor("not-a-cursor"); ok {
		t.Fatal("expected parseSyslogCursor to reject a value with no colon")
	}
	if _, ok := parseSyslogCursor("abc:123"); ok {
		t.Fatal("expected parseSyslogCursor to reject a non-numeric inode")
	}
	if _, ok := parseSyslogCursor("123:abc"); ok {
		t.Fatal("expected parseSyslogCursor to reject a non-numeric offset")
	}
}

func TestParseSyslogLineExtractsTimestampAndMessage(t *testing.T) {
	loc := time.UTC
	line := "Jan  2 15:04:05 myhost sshd[1234]: Accepted publickey for root"

	ts, severity, message, ok := parseSyslogLine(line, loc)
	if !ok {
		t.Fatal("expected ok = true")
	}
	if severity != 6 {
		t.Fatalf("severity = %d, want 6 (default info)", severity)
	}
	if message != "myhost sshd[1234]: Accepted publickey for root" {
		t.Fatalf("message = %q", message)
	}

	parsedTime := time.Unix(ts, 0).UTC()
	if parsedTime.Month() != time.January || parsedTime.Day() != 2 {
		t.Fatalf("parsed time = %v, want Jan 2", parsedTime)
	}
	if parsedTime.Hour() != 15 || parsedTime.Minute() != 4 || parsedTime.Second() != 5 {
		t.Fatalf("parsed time of day = %v, want 15:04:05", parsedTime)
	}
}

func TestParseSyslogLineRejectsShortLine(t *testing.T) {
	if _, _, _, ok := parseSyslogLine("too short", time.UTC); ok {
		t.Fatal("expected ok = false for a line shorter than the timestamp prefix")
	}
}

func TestParseSyslogLineRejectsUnparseableTimestamp(t *testing.T) {
	if _, _, _, ok := parseSyslogLine("NotAValidTimestampXX host tag: msg", time.UTC); ok {
		t.Fatal("expected ok = false for a malformed timestamp prefix")
	}
}

func TestParseSyslogLineNeverProducesATimeMoreThanADayInTheFuture(t *testing.T) {
	now := time.Now().UTC()
	// A line stamped "now" should parse back to within a few seconds of
	// now, never drifting into next year's rollback branch.
	line := now.Format("Jan _2 15:04:05") + " host tag: msg"

	ts, _, _, ok := parseSyslogLine(line, time.UTC)
	if !ok {
		t.Fatal("expected ok = true")
	}
	parsed := time.Unix(ts, 0).UTC()
	if parsed.After(now.Add(24 * time.Hour)) {
		t.Fatalf("parsed time %v is more than a day ahead of now %v", parsed, now)
	}
}
