package query

import "testing"

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		agg  Aggregation
		vals []float64
		want float64
	}{
		{"none takes first", AggNone, []float64{3, 1, 2}, 3},
		{"max", AggMax, []float64{3, 1, 2}, 3},
		{"min", AggMin, []float64{3, 1, 2}, 1},
		{"sum", AggSum, []float64{3, 1, 2}, 6},
		{"avg", AggAvg, []float64{2, 4, 6}, 4},
		{"single value any agg", AggMax, []float64{42}, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(tt.agg, tt.vals)
			if err != nil {
				t.Fatalf("Reduce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reduce(%s, %v) = %v, want %v", tt.agg, tt.vals, got, tt.want)
			}
		})
	}
}

func TestReduceEmptyIsError(t *testing.T) {
	if _, err := Reduce(AggSum, nil); err == nil {
		t.Fatal("expected an error reducing an empty value set")
	}
}

func TestReduceUnknownAggregationIsError(t *testing.T) {
	if _, err := Reduce(Aggregation("bogus"), []float64{1}); err == nil {
		t.Fatal("expected an error for an unknown aggregation")
	}
}
