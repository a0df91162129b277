package query

import (
	"context"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alkorolyov/dcmon/internal/telemetry"
	"github.com/alkorolyov/dcmon/pkg/labels"
)

// RateSpec parameterizes a Rate query (spec §4.4.3).
type RateSpec struct {
	MetricName  string
	Start, End  int64
	AgentIDs    []string
	LabelFilter labels.Filter
	WindowSec   int64
	Aggregation Aggregation
}

// Rate computes, per agent, the rate of change of a counter metric at
// every sample timestamp in [Start, End], using a trailing window of
// WindowSec seconds. A counter reset within the window yields a rate of
// 0 rather than a negative number. When more than one series per agent
// survives filtering, rates are computed per-series first, then reduced
// via Aggregation — never by summing raw counters before differencing.
func (e *Engine) Rate(ctx context.Context, spec RateSpec) (map[string][]Sample, error) {
	timer := prometheus.NewTimer(telemetry.QueryDuration.WithLabelValues("rate"))
	defer timer.ObserveDuration()

	candidates, err := e.candidatesForAgents(ctx, spec.MetricName, spec.AgentIDs, spec.LabelFilter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return map[string][]Sample{}, nil
	}

	points, err := e.rangePointsBySeries(ctx, candidates, spec.Start, spec.End)
	if err != nil {
		return nil, err
	}

	type agentTS struct {
		agentID string
		ts      int64
	}
	rates := make(map[agentTS][]float64)

	for _, s := range candidates {
		pts := points[s.SeriesID]
		sort.Slice(pts, func(i, j int) bool { return pts[i].TimestampUTCSec < pts[j].TimestampUTCSec })
		for _, r := range ratesForSeries(pts, spec.WindowSec) {
			key := agentTS{agentID: s.AgentID, ts: r.TimestampUTCSec}
			rates[key] = append(rates[key], r.Value)
		}
	}

	out := make(map[string][]Sample)
	for key, values := range rates {
		reduced, err := Reduce(spec.Aggregation, values)
		if err != nil {
			return nil, err
		}
		out[key.agentID] = append(out[key.agentID], Sample{TimestampUTCSec: key.ts, Value: reduced})
	}
	for agentID := range out {
		sort.Slice(out[agentID], func(i, j int) bool {
			return out[agentID][i].TimestampUTCSec < out[agentID][j].TimestampUTCSec
		})
	}
	return out, nil
}

// ratesForSeries computes one rate sample per input point (from the
// second point onward), using the trailing window [ts-windowSec, ts] for
// the first/last value pair, per spec §4.4.3. A counter reset anywhere
// inside the window re-anchors every subsequent window to the reset
// point: once pts[i] is seen to be lower than its current anchor, pts[i]
// itself becomes the new anchor for i+1 onward, so a later window never
// reaches back across the reset to an anchor that predates it (spec §8
// Scenario 3: points (100,1000),(200,3000),(300,0),(400,500) with
// window=400 must report 20, 0, 5 — not 0 at t=400).
func ratesForSeries(pts []genericPoint, windowSec int64) []Sample {
	if len(pts) < 2 {
		return nil
	}

	var out []Sample
	start := 0
	lastReset := -1
	for i := 1; i < len(pts); i++ {
		windowStart := pts[i].TimestampUTCSec - windowSec
		for start < i && pts[start].TimestampUTCSec < windowStart {
			start++
		}

		firstIdx := start
		if lastReset > firstIdx {
			firstIdx = lastReset
		}

		first, last := pts[firstIdx], pts[i]
		if last.TimestampUTCSec <= first.TimestampUTCSec {
			continue
		}

		var rate float64
		if last.Value < first.Value {
			// Counter reset (reboot/rollover): never report a negative
			// rate, and re-anchor future windows here.
			rate = 0
			lastReset = i
		} else {
			rate = (last.Value - first.Value) / float64(last.TimestampUTCSec-first.TimestampUTCSec)
		}
		out = append(out, Sample{TimestampUTCSec: last.TimestampUTCSec, Value: rate})
	}
	return out
}
