package query

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// FractionSpec parameterizes a Fraction query (spec §4.4.4).
type FractionSpec struct {
	AgentID    string
	Numerator  LatestValueSpec
	Denominator LatestValueSpec
	Multiplier float64
}

// Fraction computes (LatestValue(numerator) / LatestValue(denominator)) *
// multiplier. Returns ok=false if either side is missing or the
// denominator is zero, matching the null semantics spec §4.4.4 requires
// for "disk usage percentage, memory percentage" style queries.
func (e *Engine) Fraction(ctx context.Context, spec FractionSpec) (value float64, ok bool, err error) {
	timer := prometheus.NewTimer(telemetry.QueryDuration.WithLabelValues("fraction"))
	defer timer.ObserveDuration()

	spec.Numerator.AgentID = spec.AgentID
	spec.Denominator.AgentID = spec.AgentID

	num, numOK, err := e.LatestValue(ctx, spec.Numerator)
	if err != nil {
		return 0, false, err
	}
	den, denOK, err := e.LatestValue(ctx, spec.Denominator)
	if err != nil {
		return 0, false, err
	}
	if !numOK || !denOK || den == 0 {
		return 0, false, nil
	}

	return (num / den) * spec.Multiplier, true, nil
}
