package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alkorolyov/dcmon/pkg/labels"
)

// ValueKind distinguishes the physical table a series' points live in.
type ValueKind string

const (
	KindInteger ValueKind = "integer"
	KindReal    ValueKind = "real"
)

// Series identifies one dimensional time series: an agent, a metric name,
// and a canonicalized label set.
type Series struct {
	SeriesID        int64
	AgentID         string
	MetricName      string
	LabelsCanonical string
	LabelsHash      string
	ValueKind       ValueKind
}

// ErrKindMismatch is returned when a sample's numeric kind does not match
// the kind the series was first created with.
var ErrKindMismatch = errors.New("value kind mismatch")

// SeriesStore resolves and creates metric_series rows.
type SeriesStore struct {
	db DBTX
}

// NewSeriesStore creates a SeriesStore backed by db.
func NewSeriesStore(db DBTX) *SeriesStore {
	return &SeriesStore{db: db}
}

// Resolve finds or creates the series for (agentID, metricName, set),
// enforcing that the first sample observed for a series fixes its
// ValueKind permanently: a later sample with a different kind is rejected
// with ErrKindMismatch rather than silently coerced.
func (s *SeriesStore) Resolve(ctx context.Context, agentID, metricName string, set labels.Set, kind ValueKind) (*Series, error) {
	canonical := set.Canonicalize()
	hash := set.Hash()

	row := s.db.QueryRow(ctx, `
		SELECT series_id, agent_id, metric_name, labels_canonical, labels_hash, value_kind
		FROM metric_series WHERE agent_id = $1 AND metric_name = $2 AND labels_hash = $3`,
		agentID, metricName, hash)

	existing, err := scanSeries(row)
	switch {
	case err == nil:
		if existing.ValueKind != kind {
			return nil, fmt.Errorf("%w: series %d is %s, got %s", ErrKindMismatch, existing.SeriesID, existing.ValueKind, kind)
		}
		return existing, nil
	case errors.Is(err, ErrNotFound):
		// fall through to insert
	default:
		return nil, err
	}

	row = s.db.QueryRow(ctx, `
		INSERT INTO metric_series (agent_id, metric_name, labels_canonical, labels_hash, value_kind)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agent_id, metric_name, labels_hash) DO UPDATE SET metric_name = EXCLUDED.metric_name
		RETURNING series_id, agent_id, metric_name, labels_canonical, labels_hash, value_kind`,
		agentID, metricName, canonical, hash, kind)

	created, err := scanSeries(row)
	if err != nil {
		return nil, fmt.Errorf("resolving series: %w", err)
	}
	if created.ValueKind != kind {
		return nil, fmt.Errorf("%w: series %d is %s, got %s", ErrKindMismatch, created.SeriesID, created.ValueKind, kind)
	}
	return created, nil
}

func scanSeries(row pgx.Row) (*Series, error) {
	var sr Series
	err := row.Scan(&sr.SeriesID, &sr.AgentID, &sr.MetricName, &sr.LabelsCanonical, &sr.LabelsHash, &sr.ValueKind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning series: %w", err)
	}
	return &sr, nil
}

// GetByID returns the series row for seriesID.
func (s *SeriesStore) GetByID(ctx context.Context, seriesID int64) (*Series, error) {
	row := s.db.QueryRow(ctx, `
		SELECT series_id, agent_id, metric_name, labels_canonical, labels_hash, value_kind
		FROM metric_series WHERE series_id = $1`, seriesID)
	return scanSeries(row)
}

// Find returns every series for metricName whose labels match filter
// (OR-of-conjuncts semantics; an empty filter matches every series for the
// metric). agentID narrows to a single agent when non-empty.
func (s *SeriesStore) Find(ctx context.Context, agentID, metricName string, filter labels.Filter) ([]Series, error) {
	var rows pgx.Rows
	var err error
	if agentID != "" {
		rows, err = s.db.Query(ctx, `
			SELECT series_id, agent_id, metric_name, labels_canonical, labels_hash, value_kind
			FROM metric_series WHERE agent_id = $1 AND metric_name = $2`, agentID, metricName)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT series_id, agent_id, metric_name, labels_canonical, labels_hash, value_kind
			FROM metric_series WHERE metric_name = $1`, metricName)
	}
	if err != nil {
		return nil, fmt.Errorf("finding series: %w", err)
	}
	defer rows.Close()

	var out []Series
	for rows.Next() {
		var sr Series
		var canonical string
		if err := rows.Scan(&sr.SeriesID, &sr.AgentID, &sr.MetricName, &canonical, &sr.LabelsHash, &sr.ValueKind); err != nil {
			return nil, fmt.Errorf("scanning series row: %w", err)
		}
		sr.LabelsCanonical = canonical
		set := labels.Decanonicalize(canonical)
		if filter.Matches(set) {
			out = append(out, sr)
		}
	}
	return out, rows.Err()
}

// ListMetricNames returns the distinct metric names an agent (or, if empty,
// the whole fleet) has reported. Backs the GET /api/series catalog endpoint.
func (s *SeriesStore) ListMetricNames(ctx context.Context, agentID string) ([]string, error) {
	var rows pgx.Rows
	var err error
	if agentID != "" {
		rows, err = s.db.Query(ctx, `SELECT DISTINCT metric_name FROM metric_series WHERE agent_id = $1 ORDER BY metric_name`, agentID)
	} else {
		rows, err = s.db.Query(ctx, `SELECT DISTINCT metric_name FROM metric_series ORDER BY metric_name`)
	}
	if err != nil {
		return nil, fmt.Errorf("listing metric names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning metric name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
