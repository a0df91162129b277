// Package logship implements the agent-side log shipping pipeline: one
// cursor-tracked Source per feed (kernel ring buffer, systemd journal,
// syslog file), each persisting its position in auth_dir so a restart
// resumes instead of re-shipping or skipping entries, per spec §4.5.
package logship

import (
	"fmt"
	"os"
	"path/filepath"
)

// Entry is one shipped log line, independent of its source format.
type Entry struct {
	Source          string
	TimestampUTCSec int64
	Severity        int16 // 0-7, syslog scale
	Message         string
	Unit            string
	Identifier      string
	PID             int32
}

// cursorPath is auth_dir/log-cursors.<source>, per spec §6.3.
func cursorPath(authDir, source string) string {
	return filepath.Join(authDir, "log-cursors."+source)
}

// loadCursor reads a persisted cursor, reporting ok=false if this is the
// source's first run (no cursor file yet).
func loadCursor(authDir, source string) (cursor string, ok bool, err error) {
	data, err := os.ReadFile(cursorPath(authDir, source))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading cursor for %s: %w", source, err)
	}
	return string(data), true, nil
}

// saveCursor persists the advanced cursor. Callers must only call this
// after a successful POST to the server — on failure the cursor is left
// unchanged so the next cycle retries, per spec §4.5 step 4.
func saveCursor(authDir, source, cursor string) error {
	if err := os.WriteFile(cursorPath(authDir, source), []byte(cursor), 0600); err != nil {
		return fmt.Errorf("persisting cursor for %s: %w", source, err)
	}
	return nil
}

// Source is one log feed: it reads new entries since its last cursor and
// returns the entries plus the new cursor to persist on success.
type Source interface {
	Name() string
	// Collect returns up to backfillLimit entries if this is the first
	// run (cursor absent), otherwise every entry newer than the stored
	// cursor. newCursor must be saved by the caller only after a
	// successful ship.
	Collect(authDir string, backfillLimit int) (entries []Entry, newCursor string, err error)
}

// Ship runs one poll cycle for src: load its cursor, collect new entries,
// and return them with a commit func that saves the new cursor. The caller
// calls commit only once the batch has been shipped successfully.
func Ship(src Source, authDir string, backfillLimit int) ([]Entry, func() error, error) {
	entries, newCursor, err := src.Collect(authDir, backfillLimit)
	if err != nil {
		return nil, nil, err
	}
	commit := func() error { return saveCursor(authDir, src.Name(), newCursor) }
	return entries, commit, nil
}
