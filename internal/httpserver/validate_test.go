package httpserver

import (
	"net/http/httptest"
	"strings"
	"testing"
)

type testRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
	Count   int    `json:"count" validate:"gte=0,lte=10"`
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	body := `{"agent_id":"a1","count":1,"extra":"nope"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var dst testRequest
	if err := Decode(req, &dst); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	body := `{"agent_id":"a1","count":1}{"agent_id":"a2","count":2}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var dst testRequest
	if err := Decode(req, &dst); err == nil {
		t.Fatal("expected error for trailing JSON data, got nil")
	}
}

func TestDecodeRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))

	var dst testRequest
	if err := Decode(req, &dst); err == nil {
		t.Fatal("expected error for empty body, got nil")
	}
}

func TestDecodeAcceptsValidBody(t *testing.T) {
	body := `{"agent_id":"a1","count":5}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var dst testRequest
	if err := Decode(req, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.AgentID != "a1" || dst.Count != 5 {
		t.Fatalf("decoded = %+v", dst)
	}
}

func TestValidateReportsFieldErrors(t *testing.T) {
	errs := Validate(&testRequest{AgentID: "", Count: 20})
	if len(errs) != 2 {
		t.Fatalf("got %d validation errors, want 2: %+v", len(errs), errs)
	}

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	if _, ok := byField["agent_id"]; !ok {
		t.Fatalf("expected an agent_id error, got %+v", errs)
	}
	if _, ok := byField["count"]; !ok {
		t.Fatalf("expected a count error, got %+v", errs)
	}
}

func TestValidatePassesForValidStruct(t *testing.T) {
	if errs := Validate(&testRequest{AgentID: "a1", Count: 3}); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %+v", errs)
	}
}

func TestValidateReportsArrayIndexForBatchElements(t *testing.T) {
	errs := Validate(&metricsBatchRequest{
		AgentID: "host01",
		Samples: []sampleWire{
			{Metric: "cpu_usage_percent", Ts: 1700000100},
			{Metric: "", Ts: 1700000100},
		},
	})

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	if _, ok := byField["samples[1].metric"]; !ok {
		t.Fatalf("expected a samples[1].metric error naming the failing batch element, got %+v", errs)
	}
}

func TestValidateRequiresAtLeastOneSample(t *testing.T) {
	errs := Validate(&metricsBatchRequest{AgentID: "host01", Samples: nil})

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	if _, ok := byField["samples"]; !ok {
		t.Fatalf("expected a samples error for an empty batch, got %+v", errs)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"AgentID":   "agent_i_d",
		"BatchTs":   "batch_ts",
		"agent_id":  "agent_id",
		"Samples":   "samples",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
