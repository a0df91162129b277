package query

import "testing"

func TestRatesForSeriesMonotonicCounter(t *testing.T) {
	pts := []genericPoint{
		{TimestampUTCSec: 0, Value: 100},
		{TimestampUTCSec: 10, Value: 150},
		{TimestampUTCSec: 20, Value: 250},
	}

	got := ratesForSeries(pts, 15)
	if len(got) != 2 {
		t.Fatalf("expected 2 rate samples, got %d", len(got))
	}
	// window [−5,10] clipped to [0,10]: (150-100)/(10-0) = 5
	if got[0].Value != 5 {
		t.Errorf("rate at t=10 = %v, want 5", got[0].Value)
	}
	// window [5,20]: first point with ts>=5 is (10,150): (250-150)/(20-10) = 10
	if got[1].Value != 10 {
		t.Errorf("rate at t=20 = %v, want 10", got[1].Value)
	}
}

func TestRatesForSeriesCounterResetNeverNegative(t *testing.T) {
	pts := []genericPoint{
		{TimestampUTCSec: 0, Value: 900},
		{TimestampUTCSec: 10, Value: 50}, // reboot, counter reset to 0-ish
	}

	got := ratesForSeries(pts, 60)
	if len(got) != 1 {
		t.Fatalf("expected 1 rate sample, got %d", len(got))
	}
	if got[0].Value != 0 {
		t.Errorf("rate across a counter reset = %v, want 0", got[0].Value)
	}
	if got[0].Value < 0 {
		t.Fatalf("rate must never be negative")
	}
}

func TestRatesForSeriesReanchorsWindowAtMostRecentReset(t *testing.T) {
	// spec §8 Scenario 3: (100,1000),(200,3000),(300,0),(400,500),
	// window=400. The reset at t=300 must become the anchor for the
	// t=400 window rather than reaching back to t=100.
	pts := []genericPoint{
		{TimestampUTCSec: 100, Value: 1000},
		{TimestampUTCSec: 200, Value: 3000},
		{TimestampUTCSec: 300, Value: 0},
		{TimestampUTCSec: 400, Value: 500},
	}

	got := ratesForSeries(pts, 400)
	if len(got) != 3 {
		t.Fatalf("expected 3 rate samples, got %d: %+v", len(got), got)
	}
	if got[0].TimestampUTCSec != 200 || got[0].Value != 20 {
		t.Errorf("rate at t=200 = %+v, want {200 20}", got[0])
	}
	if got[1].TimestampUTCSec != 300 || got[1].Value != 0 {
		t.Errorf("rate at t=300 = %+v, want {300 0} (reset)", got[1])
	}
	if got[2].TimestampUTCSec != 400 || got[2].Value != 5 {
		t.Errorf("rate at t=400 = %+v, want {400 5}", got[2])
	}
}

func TestRatesForSeriesFewerThanTwoPointsYieldsNoSamples(t *testing.T) {
	if got := ratesForSeries(nil, 60); got != nil {
		t.Errorf("expected nil for no points, got %v", got)
	}
	if got := ratesForSeries([]genericPoint{{TimestampUTCSec: 0, Value: 1}}, 60); got != nil {
		t.Errorf("expected nil for a single point, got %v", got)
	}
}
