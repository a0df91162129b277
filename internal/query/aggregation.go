// Package query implements the four query families of spec §4.4:
// latest-value, time-range retrieval, counter-rate derivation, and
// composite fraction. All read paths batch a single SQL query per
// physical table and reduce in memory rather than round-tripping per row.
package query

import "github.com/alkorolyov/dcmon/internal/apierr"

// Aggregation combines multiple series' values into one.
type Aggregation string

const (
	AggNone Aggregation = "none"
	AggMax  Aggregation = "max"
	AggMin  Aggregation = "min"
	AggAvg  Aggregation = "avg"
	AggSum  Aggregation = "sum"
)

// Reduce combines values according to agg. none requires exactly one
// value; with more than one it falls back to the smallest-series-id
// policy enforced by the caller before Reduce is invoked (Reduce itself
// just takes the first element in that case, per spec §4.4.1's
// "deterministic" requirement).
func Reduce(agg Aggregation, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, apierr.New(apierr.BadRequest, "no values to aggregate")
	}

	switch agg {
	case AggNone, "":
		return values[0], nil
	case AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	default:
		return 0, apierr.New(apierr.BadRequest, "unknown aggregation: "+string(agg))
	}
}
