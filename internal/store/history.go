// Package store persists fire detections in SQLite and serves time-range,
// radius, and aggregate queries over them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/geo"
)

// DefaultRetentionDays is the retention horizon applied when none is
// configured.
const DefaultRetentionDays = 365

// defaultQueryLimit caps result sets when the caller passes no usable limit.
// A non-positive LIMIT means "unbounded" to SQLite, so it is never passed
// through.
const defaultQueryLimit = 100

// timeLayout is the storage format for instants. All values are UTC RFC3339
// at second precision, so lexicographic range scans are chronological.
const timeLayout = time.RFC3339

const schema = `
CREATE TABLE IF NOT EXISTS fires (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	detection_time TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	confidence REAL NOT NULL,
	power_mw REAL,
	distance_km REAL,
	source TEXT,
	search_radius_km REAL,
	center_lat REAL,
	center_lon REAL,
	alert_sent BOOLEAN DEFAULT 0,
	alert_time TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fires_time ON fires(detection_time);
CREATE INDEX IF NOT EXISTS idx_fires_coords ON fires(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_fires_confidence ON fires(confidence);
`

const insertColumns = `detection_time, latitude, longitude, confidence, power_mw,
	distance_km, source, search_radius_km, center_lat, center_lon, created_at`

const selectColumns = `id, detection_time, latitude, longitude, confidence, power_mw,
	distance_km, source, search_radius_km, center_lat, center_lon, alert_sent, alert_time, created_at`

// History is the durable store of fire detections. It is the system's source
// of truth: every write runs in a single transaction and no transaction is
// held open across public calls.
type History struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the history database at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// WAL for concurrent readers alongside the writer; busy_timeout so a
	// contended write waits instead of failing immediately.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &domain.StorageError{Op: "configure", Err: err}
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "migrate", Err: err}
	}

	logger.Info("history database ready", "path", path)
	return &History{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}

// Add persists a single detection and returns its assigned id.
func (h *History) Add(ctx context.Context, d domain.Detection) (int64, error) {
	ids, err := h.AddBatch(ctx, []domain.Detection{d})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddBatch persists detections atomically: either every record is durably
// written or none are. Returned ids are monotonic within the batch.
func (h *History) AddBatch(ctx context.Context, detections []domain.Detection) ([]int64, error) {
	if len(detections) == 0 {
		return nil, nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StorageError{Op: "begin batch", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO fires (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", insertColumns))
	if err != nil {
		return nil, &domain.StorageError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	createdAt := domain.Now().UTC().Format(timeLayout)
	ids := make([]int64, 0, len(detections))
	for _, d := range detections {
		res, err := stmt.ExecContext(ctx,
			d.DetectionTime.UTC().Format(timeLayout),
			d.Location.Lat,
			d.Location.Lon,
			d.Confidence,
			d.PowerMW,
			d.DistanceKm,
			d.Source,
			d.SearchRadiusKm,
			d.Center.Lat,
			d.Center.Lon,
			createdAt,
		)
		if err != nil {
			return nil, &domain.StorageError{Op: "insert detection", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, &domain.StorageError{Op: "insert detection", Err: err}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.StorageError{Op: "commit batch", Err: err}
	}
	return ids, nil
}

// QueryRecent returns detections from the last `hours` hours with confidence
// at or above minConfidence, newest first. Ties on detection_time break by
// id ascending for reproducible ordering; limit caps the result size, with
// non-positive values falling back to a bounded default.
func (h *History) QueryRecent(ctx context.Context, hours int, minConfidence float64, limit int) ([]domain.Detection, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	cutoff := domain.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(timeLayout)

	rows, err := h.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM fires
		WHERE detection_time >= ? AND confidence >= ?
		ORDER BY detection_time DESC, id ASC
		LIMIT ?`, selectColumns),
		cutoff, minConfidence, limit)
	if err != nil {
		return nil, &domain.StorageError{Op: "query recent", Err: err}
	}
	defer rows.Close()

	return scanDetections(rows)
}

// QueryByLocation returns detections from the last `days` days whose stored
// search-center lies within radiusKm of center. A rectangular bounding box
// prefilters candidates in SQL; the exact haversine check then enforces the
// radius precisely, so a diagonal corner of the box at radius+epsilon is
// excluded.
//
// The filter runs against each record's search-center, not the detection's
// own coordinates; see DESIGN.md for the ambiguity this carries forward.
func (h *History) QueryByLocation(ctx context.Context, center domain.GeoPoint, radiusKm float64, days int) ([]domain.Detection, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	cutoff := domain.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)
	box := geo.BoxAround(center, radiusKm)

	rows, err := h.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM fires
		WHERE detection_time >= ?
		AND center_lat BETWEEN ? AND ?
		AND center_lon BETWEEN ? AND ?
		ORDER BY detection_time DESC, id ASC`, selectColumns),
		cutoff, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, &domain.StorageError{Op: "query by location", Err: err}
	}
	defer rows.Close()

	candidates, err := scanDetections(rows)
	if err != nil {
		return nil, err
	}

	matches := candidates[:0]
	for _, d := range candidates {
		if geo.HaversineKm(center, d.Center) <= radiusKm {
			matches = append(matches, d)
		}
	}
	return matches, nil
}

// PurgeOlderThan removes detections strictly older than the retention
// horizon and returns how many were deleted. A record exactly at the
// boundary is retained.
func (h *History) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := domain.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)

	res, err := h.db.ExecContext(ctx, "DELETE FROM fires WHERE detection_time < ?", cutoff)
	if err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	if deleted > 0 {
		h.logger.Info("purged expired detections", "deleted", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

// Statistics summarizes detection activity over the last `days` days.
type Statistics struct {
	Total               int64   `json:"total_detections"`
	HighConfidenceCount int64   `json:"high_confidence_detections"`
	AvgConfidence       float64 `json:"average_confidence"`
	TotalPowerMW        float64 `json:"total_thermal_power_mw"`
	AlertsSentCount     int64   `json:"alerts_sent"`
	PeriodDays          int     `json:"period_days"`
}

// Stats computes aggregate statistics over the window.
func (h *History) Stats(ctx context.Context, days int) (Statistics, error) {
	cutoff := domain.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)

	var (
		s             = Statistics{PeriodDays: days}
		avgConfidence sql.NullFloat64
		totalPower    sql.NullFloat64
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(confidence >= 0.8), 0),
		       AVG(confidence),
		       SUM(power_mw),
		       COALESCE(SUM(alert_sent), 0)
		FROM fires WHERE detection_time >= ?`, cutoff).
		Scan(&s.Total, &s.HighConfidenceCount, &avgConfidence, &totalPower, &s.AlertsSentCount)
	if err != nil {
		return Statistics{}, &domain.StorageError{Op: "statistics", Err: err}
	}
	s.AvgConfidence = avgConfidence.Float64
	s.TotalPowerMW = totalPower.Float64
	return s, nil
}

// MarkAlertSent flags a detection as alerted. Idempotent: marking an
// already-alerted detection succeeds without changing its alert time.
// Returns false only when no detection has the given id.
func (h *History) MarkAlertSent(ctx context.Context, id int64) (bool, error) {
	now := domain.Now().UTC().Format(timeLayout)
	res, err := h.db.ExecContext(ctx, `
		UPDATE fires
		SET alert_sent = 1, alert_time = COALESCE(alert_time, ?)
		WHERE id = ?`, now, id)
	if err != nil {
		return false, &domain.StorageError{Op: "mark alert", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &domain.StorageError{Op: "mark alert", Err: err}
	}
	return affected > 0, nil
}

func scanDetections(rows *sql.Rows) ([]domain.Detection, error) {
	var detections []domain.Detection
	for rows.Next() {
		var (
			d              domain.Detection
			detectionTime  string
			createdAt      string
			alertTime      sql.NullString
			powerMW        sql.NullFloat64
			distanceKm     sql.NullFloat64
			source         sql.NullString
			searchRadiusKm sql.NullFloat64
		)
		err := rows.Scan(
			&d.ID,
			&detectionTime,
			&d.Location.Lat,
			&d.Location.Lon,
			&d.Confidence,
			&powerMW,
			&distanceKm,
			&source,
			&searchRadiusKm,
			&d.Center.Lat,
			&d.Center.Lon,
			&d.AlertSent,
			&alertTime,
			&createdAt,
		)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan detection", Err: err}
		}

		d.DetectionTime, _ = time.Parse(timeLayout, detectionTime)
		d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if alertTime.Valid {
			if t, err := time.Parse(timeLayout, alertTime.String); err == nil {
				d.AlertTime = &t
			}
		}
		d.PowerMW = powerMW.Float64
		d.DistanceKm = distanceKm.Float64
		d.Source = source.String
		d.SearchRadiusKm = searchRadiusKm.Float64

		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "scan detection", Err: err}
	}
	return detections, nil
}
