package httpserver

import (
	"net/http"

	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/ingest"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

type sampleWire struct {
	Metric   string     `json:"metric" validate:"required"`
	Labels   labels.Set `json:"labels"`
	Value    float64    `json:"value"`
	Ts       int64      `json:"ts" validate:"required"`
	KindHint string     `json:"kind,omitempty" validate:"omitempty,oneof=int float"`
}

type metricsBatchRequest struct {
	AgentID   string       `json:"agent_id" validate:"required"`
	BatchTs   int64        `json:"batch_ts"`
	Samples   []sampleWire `json:"samples" validate:"required,min=1,dive"`
}

func (s *Server) handleIngestMetrics(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "metrics ingest requires an agent bearer token")
		return
	}

	var req metricsBatchRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	batch := ingest.Batch{
		AgentID:        req.AgentID,
		BatchTimestamp: req.BatchTs,
		Samples:        make([]ingest.Sample, len(req.Samples)),
	}
	for i, sw := range req.Samples {
		batch.Samples[i] = ingest.Sample{
			MetricName:      sw.Metric,
			Labels:          sw.Labels,
			Value:           sw.Value,
			TimestampUTCSec: sw.Ts,
			KindHint:        sw.KindHint,
		}
	}

	result, err := s.cfg.Metrics.Ingest(r.Context(), identity.AgentID, batch)
	if err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, result)
}

type logEntryWire struct {
	Source     string `json:"source" validate:"required"`
	Ts         int64  `json:"ts" validate:"required"`
	Severity   int16  `json:"severity"`
	Message    string `json:"message"`
	Unit       string `json:"unit,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	PID        int32  `json:"pid,omitempty"`
}

type logBatchRequest struct {
	AgentID string         `json:"agent_id" validate:"required"`
	Entries []logEntryWire `json:"entries" validate:"required,min=1,dive"`
}

func (s *Server) handleIngestLogs(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || identity.IsAdmin {
		RespondError(w, http.StatusForbidden, "forbidden", "log ingest requires an agent bearer token")
		return
	}

	var req logBatchRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	batch := ingest.LogBatch{
		AgentID: req.AgentID,
		Entries: make([]ingest.LogEntry, len(req.Entries)),
	}
	for i, ew := range req.Entries {
		batch.Entries[i] = ingest.LogEntry{
			Source:          ew.Source,
			TimestampUTCSec: ew.Ts,
			Severity:        ew.Severity,
			Message:         ew.Message,
			Unit:            ew.Unit,
			Identifier:      ew.Identifier,
			PID:             ew.PID,
		}
	}

	if err := s.cfg.LogIngest.Ingest(r.Context(), identity.AgentID, batch); err != nil {
		RespondAPIError(w, s.cfg.Logger, err)
		return
	}

	Respond(w, http.StatusOK, map[string]int{"accepted": len(batch.Entries)})
}
