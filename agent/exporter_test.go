package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeExporter struct {
	name    string
	samples []Sample
	err     error
}

func (f *fakeExporter) Name() string { return f.name }
func (f *fakeExporter) Collect(ctx context.Context) ([]Sample, error) {
	return f.samples, f.err
}

func TestCollectAllTagsTimestampAndAggregates(t *testing.T) {
	now := time.Unix(1700000000, 0)
	exporters := []Exporter{
		&fakeExporter{name: "a", samples: []Sample{{Metric: "a.x", Value: 1, Kind: "float"}}},
		&fakeExporter{name: "b", samples: []Sample{{Metric: "b.y", Value: 2, Kind: "int"}}},
	}

	samples, errs := collectAll(context.Background(), exporters, now)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	for _, s := range samples {
		if s.Ts != now.Unix() {
			t.Fatalf("sample Ts = %d, want %d", s.Ts, now.Unix())
		}
	}
}

func TestCollectAllContinuesPastExporterError(t *testing.T) {
	exporters := []Exporter{
		&fakeExporter{name: "broken", err: errors.New("boom")},
		&fakeExporter{name: "ok", samples: []Sample{{Metric: "ok.z", Value: 3}}},
	}

	samples, errs := collectAll(context.Background(), exporters, time.Unix(0, 0))
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if len(samples) != 1 || samples[0].Metric != "ok.z" {
		t.Fatalf("samples = %+v, want just ok.z", samples)
	}
}

func TestLoadAverageExporterParsesStandardFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadavg")
	if err := os.WriteFile(path, []byte("0.10 0.20 0.30 1/200 12345\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	e := &LoadAverageExporter{procPath: path}
	samples, err := e.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	want := map[string]float64{"1m": 0.10, "5m": 0.20, "15m": 0.30}
	for _, s := range samples {
		if s.Value != want[s.Labels["window"]] {
			t.Errorf("window %s = %v, want %v", s.Labels["window"], s.Value, want[s.Labels["window"]])
		}
	}
}

func TestLoadAverageExporterRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loadavg")
	if err := os.WriteFile(path, []byte("garbage\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	e := &LoadAverageExporter{procPath: path}
	if _, err := e.Collect(context.Background()); err == nil {
		t.Fatal("expected an error for malformed loadavg content")
	}
}
