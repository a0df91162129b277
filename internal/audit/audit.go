// Package audit implements an async, buffered writer for the server's
// append-only JSON-lines audit log, per spec §6.3 ("Audit log: append-only
// JSON-lines file").
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Event is a single audit log record. Kind is a short, stable label
// ("auth_failure", "agent_registered", "agent_revoked", "command_enqueued",
// ...); Detail carries kind-specific structured fields.
type Event struct {
	Kind        string          `json:"kind"`
	Timestamp   time.Time       `json:"timestamp"`
	AgentID     string          `json:"agent_id,omitempty"`
	TokenPrefix string          `json:"token_prefix,omitempty"`
	RemoteAddr  string          `json:"remote_addr,omitempty"`
	Path        string          `json:"path,omitempty"`
	Detail      json.RawMessage `json:"detail,omitempty"`
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine to an
// append-only file, never blocking the request path that records them.
type Writer struct {
	path   string
	logger *slog.Logger
	events chan Event
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewWriter creates an audit Writer targeting the JSON-lines file at path.
// Call Start to begin processing entries.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{
		path:   path,
		logger: logger,
		events: make(chan Event, bufferSize),
		now:    time.Now,
	}
}

// Start launches the background flush loop in a goroutine and returns
// immediately. The loop exits when ctx is cancelled or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close closes the event channel and waits for the background loop to
// flush what it has buffered and exit, whether or not Start's ctx has been
// cancelled. A Record call after Close panics.
func (w *Writer) Close() {
	close(w.events)
	w.wg.Wait()
}

// Record enqueues an audit event for async writing. It never blocks the
// caller; if the buffer is full the event is dropped and a warning logged,
// since losing an audit record is preferable to stalling the request path
// that produced it.
func (w *Writer) Record(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = w.now()
	}
	select {
	case w.events <- e:
	default:
		w.logger.Warn("audit log buffer full, dropping entry", "kind", e.Kind)
	}
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-w.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-w.events:
					if !ok {
						flush()
						return
					}
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush appends a batch of events to the log file as newline-delimited
// JSON, opening and closing the file per flush so rotation (e.g. by
// logrotate) is picked up on the next write.
func (w *Writer) flush(events []Event) {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		w.logger.Error("opening audit log", "error", err, "path", w.path)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			w.logger.Error("writing audit entry", "error", err, "kind", e.Kind)
		}
	}
}

// NewEventDetail marshals v to json.RawMessage for use as an Event's
// Detail field, logging (rather than failing) on a marshal error since
// audit logging must never be the reason a request fails.
func NewEventDetail(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return b
}
