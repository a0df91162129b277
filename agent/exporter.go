package agent

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Sample is one labelled numeric observation produced by an Exporter.
type Sample struct {
	Metric string
	Labels map[string]string
	Value  float64
	Kind   string // "int" or "float"
}

// Exporter collects labelled numeric samples from one subsystem. Concrete
// sensor collection is out of scope per spec §1; LoadAverageExporter and
// DiskUsageExporter below exist to exercise the pipeline end to end, not
// as a complete hardware-monitoring surface.
type Exporter interface {
	// Name identifies the exporter in logs and metrics.
	Name() string
	// Collect returns the current set of samples. It must not block
	// longer than the caller's context deadline.
	Collect(ctx context.Context) ([]Sample, error)
}

// LoadAverageExporter reads /proc/loadavg and emits the 1/5/15-minute
// system load averages.
type LoadAverageExporter struct {
	procPath string
}

// NewLoadAverageExporter creates a LoadAverageExporter reading the
// standard /proc/loadavg path.
func NewLoadAverageExporter() *LoadAverageExporter {
	return &LoadAverageExporter{procPath: "/proc/loadavg"}
}

func (e *LoadAverageExporter) Name() string { return "load_average" }

func (e *LoadAverageExporter) Collect(ctx context.Context) ([]Sample, error) {
	data, err := os.ReadFile(e.procPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", e.procPath, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return nil, fmt.Errorf("unexpected loadavg format: %q", string(data))
	}

	windows := []string{"1m", "5m", "15m"}
	samples := make([]Sample, 0, 3)
	for i, window := range windows {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing loadavg field %d: %w", i, err)
		}
		samples = append(samples, Sample{
			Metric: "system.load_average",
			Labels: map[string]string{"window": window},
			Value:  v,
			Kind:   "float",
		})
	}
	return samples, nil
}

// DiskUsageExporter emits total and used byte counts for each configured
// mount point via syscall.Statfs, the same primitive `df` uses.
type DiskUsageExporter struct {
	mountPoints []string
}

// NewDiskUsageExporter creates a DiskUsageExporter covering the given
// mount points (e.g. "/", "/var").
func NewDiskUsageExporter(mountPoints []string) *DiskUsageExporter {
	return &DiskUsageExporter{mountPoints: mountPoints}
}

func (e *DiskUsageExporter) Name() string { return "disk_usage" }

func (e *DiskUsageExporter) Collect(ctx context.Context) ([]Sample, error) {
	samples := make([]Sample, 0, len(e.mountPoints)*2)
	for _, mp := range e.mountPoints {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(mp, &stat); err != nil {
			return nil, fmt.Errorf("statfs %s: %w", mp, err)
		}

		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bfree * uint64(stat.Bsize)
		used := total - free

		labels := map[string]string{"mount": mp}
		samples = append(samples,
			Sample{Metric: "disk.bytes_total", Labels: labels, Value: float64(total), Kind: "int"},
			Sample{Metric: "disk.bytes_used", Labels: labels, Value: float64(used), Kind: "int"},
		)
	}
	return samples, nil
}

// collectAll runs every exporter in sequence, tagging the resulting
// samples with a collection timestamp. A single exporter's error is
// logged by the caller and does not abort the others.
func collectAll(ctx context.Context, exporters []Exporter, now time.Time) (samples []SampleWire, errs []error) {
	for _, exp := range exporters {
		results, err := exp.Collect(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", exp.Name(), err))
			continue
		}
		for _, s := range results {
			samples = append(samples, SampleWire{
				Metric:   s.Metric,
				Labels:   s.Labels,
				Value:    s.Value,
				Ts:       now.Unix(),
				KindHint: s.Kind,
			})
		}
	}
	return samples, errs
}
