package store

import (
	"context"
	"fmt"
)

// IntPoint is a single sample in metric_points_int.
type IntPoint struct {
	SeriesID        int64
	TimestampUTCSec int64
	Value           int64
}

// FloatPoint is a single sample in metric_points_float.
type FloatPoint struct {
	SeriesID        int64
	TimestampUTCSec int64
	Value           float64
}

// PointStore writes and reads series samples, split across the integer and
// real physical tables according to the series' fixed ValueKind.
type PointStore struct {
	db DBTX
}

// NewPointStore creates a PointStore backed by db.
func NewPointStore(db DBTX) *PointStore {
	return &PointStore{db: db}
}

// InsertInt idempotently inserts points into metric_points_int: a point
// already present at (series_id, timestamp_utc_sec) is left untouched
// (first writer wins), matching the retry-safe ingestion contract agents
// rely on when re-pushing a batch after a timeout.
func (s *PointStore) InsertInt(ctx context.Context, points []IntPoint) (inserted int, err error) {
	for _, p := range points {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO metric_points_int (series_id, timestamp_utc_sec, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (series_id, timestamp_utc_sec) DO NOTHING`,
			p.SeriesID, p.TimestampUTCSec, p.Value)
		if err != nil {
			return inserted, fmt.Errorf("inserting int point: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// InsertFloat is the real-table counterpart of InsertInt.
func (s *PointStore) InsertFloat(ctx context.Context, points []FloatPoint) (inserted int, err error) {
	for _, p := range points {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO metric_points_float (series_id, timestamp_utc_sec, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (series_id, timestamp_utc_sec) DO NOTHING`,
			p.SeriesID, p.TimestampUTCSec, p.Value)
		if err != nil {
			return inserted, fmt.Errorf("inserting float point: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// LatestInt returns the newest sample at or before asOf for each series in
// seriesIDs, omitting series with no eligible sample.
func (s *PointStore) LatestInt(ctx context.Context, seriesIDs []int64, asOf int64) (map[int64]IntPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (series_id) series_id, timestamp_utc_sec, value
		FROM metric_points_int
		WHERE series_id = ANY($1) AND timestamp_utc_sec <= $2
		ORDER BY series_id, timestamp_utc_sec DESC`, seriesIDs, asOf)
	if err != nil {
		return nil, fmt.Errorf("querying latest int points: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]IntPoint, len(seriesIDs))
	for rows.Next() {
		var p IntPoint
		if err := rows.Scan(&p.SeriesID, &p.TimestampUTCSec, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning latest int point: %w", err)
		}
		out[p.SeriesID] = p
	}
	return out, rows.Err()
}

// LatestFloat is the real-table counterpart of LatestInt.
func (s *PointStore) LatestFloat(ctx context.Context, seriesIDs []int64, asOf int64) (map[int64]FloatPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (series_id) series_id, timestamp_utc_sec, value
		FROM metric_points_float
		WHERE series_id = ANY($1) AND timestamp_utc_sec <= $2
		ORDER BY series_id, timestamp_utc_sec DESC`, seriesIDs, asOf)
	if err != nil {
		return nil, fmt.Errorf("querying latest float points: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]FloatPoint, len(seriesIDs))
	for rows.Next() {
		var p FloatPoint
		if err := rows.Scan(&p.SeriesID, &p.TimestampUTCSec, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning latest float point: %w", err)
		}
		out[p.SeriesID] = p
	}
	return out, rows.Err()
}

// RangeInt returns every sample within [from, to] for any series in
// seriesIDs, in one query regardless of how many series are requested —
// the query engine's performance contract forbids a query per series.
// Ordered by series then timestamp ascending.
func (s *PointStore) RangeInt(ctx context.Context, seriesIDs []int64, from, to int64) (map[int64][]IntPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT series_id, timestamp_utc_sec, value
		FROM metric_points_int
		WHERE series_id = ANY($1) AND timestamp_utc_sec BETWEEN $2 AND $3
		ORDER BY series_id, timestamp_utc_sec ASC`, seriesIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying int range: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]IntPoint)
	for rows.Next() {
		var p IntPoint
		if err := rows.Scan(&p.SeriesID, &p.TimestampUTCSec, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning int range point: %w", err)
		}
		out[p.SeriesID] = append(out[p.SeriesID], p)
	}
	return out, rows.Err()
}

// RangeFloat is the real-table counterpart of RangeInt.
func (s *PointStore) RangeFloat(ctx context.Context, seriesIDs []int64, from, to int64) (map[int64][]FloatPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT series_id, timestamp_utc_sec, value
		FROM metric_points_float
		WHERE series_id = ANY($1) AND timestamp_utc_sec BETWEEN $2 AND $3
		ORDER BY series_id, timestamp_utc_sec ASC`, seriesIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying float range: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]FloatPoint)
	for rows.Next() {
		var p FloatPoint
		if err := rows.Scan(&p.SeriesID, &p.TimestampUTCSec, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning float range point: %w", err)
		}
		out[p.SeriesID] = append(out[p.SeriesID], p)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes samples from both physical tables with a
// timestamp before cutoff, returning the count removed from each table.
// Used by the retention sweep.
func (s *PointStore) DeleteOlderThan(ctx context.Context, cutoff int64) (intDeleted, floatDeleted int64, err error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM metric_points_int WHERE timestamp_utc_sec < $1`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting old int points: %w", err)
	}
	intDeleted = tag.RowsAffected()

	tag, err = s.db.Exec(ctx, `DELETE FROM metric_points_float WHERE timestamp_utc_sec < $1`, cutoff)
	if err != nil {
		return intDeleted, 0, fmt.Errorf("deleting old float points: %w", err)
	}
	floatDeleted = tag.RowsAffected()

	return intDeleted, floatDeleted, nil
}
