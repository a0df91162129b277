package httpserver

import (
	"net/http/httptest"
	"testing"

	"github.com/alkorolyov/dcmon/pkg/labels"
)

func TestParseLabelFilterEmptyMatchesNothingSpecified(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/timeseries/cpu", nil)

	filter, err := parseLabelFilter(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter != nil {
		t.Fatalf("filter = %v, want nil for absent param", filter)
	}
}

func TestParseLabelFilterDecodesOrOfConjuncts(t *testing.T) {
	req := httptest.NewRequest("GET", `/api/timeseries/cpu?labels=[{"core":"0"},{"core":"1","socket":"0"}]`, nil)

	filter, err := parseLabelFilter(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filter) != 2 {
		t.Fatalf("got %d conjuncts, want 2", len(filter))
	}
	if !filter[0].Matches(labels.Set{"core": "0"}) {
		t.Fatalf("expected first conjunct to match core=0")
	}
	if !filter[1].Matches(labels.Set{"core": "1", "socket": "0"}) {
		t.Fatalf("expected second conjunct to match core=1,socket=0")
	}
}

func TestParseLabelFilterRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/timeseries/cpu?labels=not-json", nil)

	if _, err := parseLabelFilter(req); err == nil {
		t.Fatal("expected an error for malformed labels JSON")
	}
}

func TestQueryInt64UsesDefaultWhenAbsentOrInvalid(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/stats?seconds=bogus", nil)
	if got := queryInt64(req, "seconds", 42); got != 42 {
		t.Fatalf("queryInt64() = %d, want 42 for invalid value", got)
	}

	req = httptest.NewRequest("GET", "/api/stats", nil)
	if got := queryInt64(req, "seconds", 42); got != 42 {
		t.Fatalf("queryInt64() = %d, want 42 for absent value", got)
	}
}

func TestQueryInt64ParsesPresentValue(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/stats?seconds=100", nil)
	if got := queryInt64(req, "seconds", 42); got != 100 {
		t.Fatalf("queryInt64() = %d, want 100", got)
	}
}

func TestTimeWindowDefaultsToTrailingHour(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/timeseries/cpu", nil)

	start, end := timeWindow(req)
	if end-start != 3600 {
		t.Fatalf("window = %d seconds, want 3600", end-start)
	}
}

func TestTimeWindowHonorsExplicitBounds(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/timeseries/cpu?since_timestamp=1000&until_timestamp=2000", nil)

	start, end := timeWindow(req)
	if start != 1000 || end != 2000 {
		t.Fatalf("window = [%d, %d], want [1000, 2000]", start, end)
	}
}
