package logship

import (
	"fmt"
	"strconv"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// JournalSource ships systemd journal entries newer than the stored
// realtime-microseconds cursor, per spec §4.5's "systemd journal" source.
type JournalSource struct {
	severityFloor int16
}

// NewJournalSource creates a JournalSource filtering to severities at or
// below severityFloor.
func NewJournalSource(severityFloor int16) *JournalSource {
	return &JournalSource{severityFloor: severityFloor}
}

func (j *JournalSource) Name() string { return "journal" }

func (j *JournalSource) Collect(authDir string, backfillLimit int) ([]Entry, string, error) {
	cursor, hasCursor, err := loadCursor(authDir, j.Name())
	if err != nil {
		return nil, "", err
	}

	reader, err := sdjournal.NewJournal()
	if err != nil {
		return nil, "", fmt.Errorf("opening journal: %w", err)
	}
	defer reader.Close()

	var lastUsec uint64
	if hasCursor {
		lastUsec, err = strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("parsing journal cursor: %w", err)
		}
		if err := reader.SeekRealtimeUsec(lastUsec); err != nil {
			return nil, "", fmt.Errorf("seeking journal cursor: %w", err)
		}
		// SeekRealtimeUsec positions just before the target; step past
		// the entry we've already shipped.
		if _, err := reader.Next(); err != nil {
			return nil, "", fmt.Errorf("advancing past journal cursor: %w", err)
		}
	} else if backfillLimit > 0 {
		if err := reader.SeekTail(); err != nil {
			return nil, "", fmt.Errorf("seeking journal tail: %w", err)
		}
		if _, err := reader.PreviousSkip(uint64(backfillLimit)); err != nil {
			return nil, "", fmt.Errorf("seeking journal backfill window: %w", err)
		}
	}

	var entries []Entry
	maxUsec := lastUsec
	for {
		n, err := reader.Next()
		if err != nil {
			return nil, "", fmt.Errorf("reading journal entry: %w", err)
		}
		if n == 0 {
			break
		}

		raw, err := reader.GetEntry()
		if err != nil {
			return nil, "", fmt.Errorf("getting journal entry: %w", err)
		}

		severity := journalSeverity(raw.Fields)
		if severity > j.severityFloor {
			continue
		}

		unit := raw.Fields["_SYSTEMD_UNIT"]
		identifier := raw.Fields["SYSLOG_IDENTIFIER"]
		pid, _ := strconv.Atoi(raw.Fields["_PID"])
		message := fmt.Sprintf("[%s] %s[%d]: %s", unit, identifier, pid, raw.Fields["MESSAGE"])

		entries = append(entries, Entry{
			Source:          j.Name(),
			TimestampUTCSec: int64(raw.RealtimeTimestamp / 1_000_000),
			Severity:        severity,
			Message:         message,
			Unit:            unit,
			Identifier:      identifier,
			PID:             int32(pid),
		})

		if raw.RealtimeTimestamp > maxUsec {
			maxUsec = raw.RealtimeTimestamp
		}
	}

	return entries, strconv.FormatUint(maxUsec, 10), nil
}

// journalSeverity extracts the syslog PRIORITY field, defaulting to
// "info" (6) when absent.
func journalSeverity(fields map[string]string) int16 {
	raw, ok := fields["PRIORITY"]
	if !ok {
		return 6
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 6
	}
	return int16(v)
}
