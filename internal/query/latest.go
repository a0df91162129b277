package query

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

// Engine runs every query family against the series and point stores.
type Engine struct {
	series *store.SeriesStore
	points *store.PointStore
	now    func() time.Time
}

// NewEngine creates a query Engine.
func NewEngine(series *store.SeriesStore, points *store.PointStore) *Engine {
	return &Engine{series: series, points: points, now: time.Now}
}

// LatestValueSpec parameterizes a LatestValue query (spec §4.4.1).
type LatestValueSpec struct {
	AgentID     string
	MetricName  string
	LabelFilter labels.Filter
	Aggregation Aggregation
}

// LatestValue resolves candidate series, fetches each one's newest point
// at or before now, and reduces across the candidate set. Returns
// (0, false, nil) when no series matches.
func (e *Engine) LatestValue(ctx context.Context, spec LatestValueSpec) (value float64, ok bool, err error) {
	timer := prometheus.NewTimer(telemetry.QueryDuration.WithLabelValues("latest"))
	defer timer.ObserveDuration()

	candidates, err := e.series.Find(ctx, spec.AgentID, spec.MetricName, spec.LabelFilter)
	if err != nil {
		return 0, false, fmt.Errorf("finding candidate series: %w", err)
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	values, err := e.latestValuesForSeries(ctx, candidates, e.now().Unix())
	if err != nil {
		return 0, false, err
	}
	if len(values) == 0 {
		return 0, false, nil
	}

	if spec.Aggregation == AggNone || spec.Aggregation == "" {
		values = []seriesValue{smallestSeriesID(values)}
	}

	reduced, err := Reduce(spec.Aggregation, floatsOf(values))
	if err != nil {
		return 0, false, err
	}
	return reduced, true, nil
}

type seriesValue struct {
	SeriesID  int64
	Value     float64
	Timestamp int64
}

// latestValuesForSeries fetches the newest point at or before asOf for
// each candidate series, querying the int and float tables once each
// (never per-row) and merging results, keeping only the latest timestamp
// across the whole candidate set per spec §4.4.1.
func (e *Engine) latestValuesForSeries(ctx context.Context, candidates []store.Series, asOf int64) ([]seriesValue, error) {
	var intIDs, floatIDs []int64
	kindBySeries := make(map[int64]store.ValueKind, len(candidates))
	for _, s := range candidates {
		kindBySeries[s.SeriesID] = s.ValueKind
		if s.ValueKind == store.KindInteger {
			intIDs = append(intIDs, s.SeriesID)
		} else {
			floatIDs = append(floatIDs, s.SeriesID)
		}
	}

	var all []seriesValue
	if len(intIDs) > 0 {
		pts, err := e.points.LatestInt(ctx, intIDs, asOf)
		if err != nil {
			return nil, fmt.Errorf("fetching latest int points: %w", err)
		}
		for id, p := range pts {
			all = append(all, seriesValue{SeriesID: id, Value: float64(p.Value), Timestamp: p.TimestampUTCSec})
		}
	}
	if len(floatIDs) > 0 {
		pts, err := e.points.LatestFloat(ctx, floatIDs, asOf)
		if err != nil {
			return nil, fmt.Errorf("fetching latest float points: %w", err)
		}
		for id, p := range pts {
			all = append(all, seriesValue{SeriesID: id, Value: p.Value, Timestamp: p.TimestampUTCSec})
		}
	}

	if len(all) == 0 {
		return nil, nil
	}

	maxTS := all[0].Timestamp
	for _, v := range all {
		if v.Timestamp > maxTS {
			maxTS = v.Timestamp
		}
	}
	newest := all[:0]
	for _, v := range all {
		if v.Timestamp == maxTS {
			newest = append(newest, v)
		}
	}
	return newest, nil
}

func smallestSeriesID(values []seriesValue) seriesValue {
	best := values[0]
	for _, v := range values[1:] {
		if v.SeriesID < best.SeriesID {
			best = v
		}
	}
	return best
}

func floatsOf(values []seriesValue) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Value
	}
	return out
}

