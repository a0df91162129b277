// Package ingest implements the batch ingestion algorithms for metric
// samples (§4.2) and log entries (§4.5): series discovery, per-sample
// kind-mismatch handling, and idempotent point insertion.
package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alkorolyov/dcmon/internal/apierr"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

// Sample is one point in a metric ingestion batch.
type Sample struct {
	MetricName      string
	Labels          labels.Set
	Value           float64
	TimestampUTCSec int64
	KindHint        string // "int", "float", or ""
}

// Batch is the full body of a POST /api/metrics request.
type Batch struct {
	AgentID        string
	BatchTimestamp int64
	Samples        []Sample
}

// Rejection describes one sample that failed to ingest.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result summarizes the outcome of ingesting a batch, per spec §4.2.
type Result struct {
	Accepted      int         `json:"accepted"`
	Rejected      int         `json:"rejected"`
	SeriesCreated int         `json:"series_created"`
	Rejections    []Rejection `json:"rejections,omitempty"`
}

// Metrics ingests batches of samples, resolving each against the series
// catalog and appending to the appropriate physical point table.
type Metrics struct {
	series *store.SeriesStore
	points *store.PointStore
	agents *store.AgentStore
	now    func() time.Time
}

// NewMetrics creates a Metrics ingester.
func NewMetrics(series *store.SeriesStore, points *store.PointStore, agents *store.AgentStore) *Metrics {
	return &Metrics{series: series, points: points, agents: agents, now: time.Now}
}

// Ingest runs the algorithm in spec §4.2: resolve-or-create series per
// sample, reject kind mismatches without aborting the batch, insert
// idempotently, then bump the agent's last_seen.
func (m *Metrics) Ingest(ctx context.Context, identityAgentID string, batch Batch) (Result, error) {
	if batch.AgentID != identityAgentID {
		return Result{}, apierr.New(apierr.Forbidden, "batch agent_id does not match authenticated identity")
	}

	var result Result
	var intPoints []store.IntPoint
	var floatPoints []store.FloatPoint

	for i, s := range batch.Samples {
		kind := effectiveKind(s)

		sr, err := m.series.Resolve(ctx, batch.AgentID, s.MetricName, s.Labels, kind)
		if err != nil {
			result.Rejected++
			result.Rejections = append(result.Rejections, Rejection{Index: i, Reason: rejectReason(err)})
			telemetry.SamplesIngestedTotal.WithLabelValues("rejected").Inc()
			continue
		}

		result.Accepted++
		telemetry.SamplesIngestedTotal.WithLabelValues("accepted").Inc()
		if kind == store.KindInteger {
			intPoints = append(intPoints, store.IntPoint{SeriesID: sr.SeriesID, TimestampUTCSec: s.TimestampUTCSec, Value: int64(s.Value)})
		} else {
			floatPoints = append(floatPoints, store.FloatPoint{SeriesID: sr.SeriesID, TimestampUTCSec: s.TimestampUTCSec, Value: s.Value})
		}
	}

	if len(intPoints) > 0 {
		if _, err := m.points.InsertInt(ctx, intPoints); err != nil {
			return Result{}, apierr.Wrap(apierr.Internal, "inserting int points", err)
		}
	}
	if len(floatPoints) > 0 {
		if _, err := m.points.InsertFloat(ctx, floatPoints); err != nil {
			return Result{}, apierr.Wrap(apierr.Internal, "inserting float points", err)
		}
	}

	if err := m.agents.TouchLastSeen(ctx, batch.AgentID, m.now()); err != nil {
		return Result{}, apierr.Wrap(apierr.Internal, "updating last_seen", err)
	}

	return result, nil
}

// effectiveKind derives a sample's numeric kind from its hint (when given)
// and its value: a whole number with no float hint is treated as integer,
// matching the agent-side default of preferring the cheaper int column.
func effectiveKind(s Sample) store.ValueKind {
	switch s.KindHint {
	case "int":
		return store.KindInteger
	case "float":
		return store.KindReal
	}
	if s.Value == math.Trunc(s.Value) {
		return store.KindInteger
	}
	return store.KindReal
}

func rejectReason(err error) string {
	if apiErr, ok := apierr.As(err); ok {
		return apiErr.Message
	}
	return fmt.Sprintf("%v", err)
}
