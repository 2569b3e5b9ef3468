package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kishor/mergescan/internal/match"
	"github.com/kishor/mergescan/internal/scan"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ScanRecord is one persisted scan cycle with its per-template results.
type ScanRecord struct {
	ID          string
	StartedAt   time.Time
	DurationMs  int64
	Skipped     bool
	ChangeRatio float64
	Results     []match.Detection
}

// ScanRepository persists and queries scan cycles. It implements the
// engine's Recorder hook.
type ScanRepository struct {
	db *sql.DB
}

// Scans returns the scan repository for this store.
func (s *Store) Scans() *ScanRepository {
	return &ScanRepository{db: s.db}
}

// Record writes one scan cycle and its detections in a single transaction.
func (r *ScanRepository) Record(u scan.Update) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	skipped := 0
	if u.Skipped {
		skipped = 1
	}
	_, err = tx.Exec(
		`INSERT INTO scans (id, started_at, duration_ms, skipped, change_ratio, detections)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.CycleID, u.Timestamp, u.Duration.Milliseconds(), skipped, u.ChangeRatio, len(u.Results),
	)
	if err != nil {
		return err
	}

	for _, d := range u.Results {
		positions, err := json.Marshal(pointList(d.Positions))
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO detections (scan_id, template, count, confidence, positions, error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			u.CycleID, d.Template, d.Count, d.Confidence, string(positions), d.Err,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get retrieves a single scan cycle with its detections.
func (r *ScanRepository) Get(id string) (*ScanRecord, error) {
	rec := &ScanRecord{}
	var skipped int

	err := r.db.QueryRow(
		`SELECT id, started_at, duration_ms, skipped, change_ratio
		 FROM scans WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.StartedAt, &rec.DurationMs, &skipped, &rec.ChangeRatio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Skipped = skipped != 0

	if rec.Results, err = r.detectionsFor(id); err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent retrieves the newest scan cycles, most recent first.
func (r *ScanRepository) Recent(limit int) ([]*ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, started_at, duration_ms, skipped, change_ratio
		 FROM scans ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ScanRecord
	for rows.Next() {
		rec := &ScanRecord{}
		var skipped int

		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.DurationMs, &skipped, &rec.ChangeRatio); err != nil {
			return nil, err
		}
		rec.Skipped = skipped != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.Results, err = r.detectionsFor(rec.ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Prune deletes all but the newest keep cycles; detections cascade.
func (r *ScanRepository) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := r.db.Exec(
		`DELETE FROM scans WHERE id NOT IN (
			SELECT id FROM scans ORDER BY started_at DESC, id LIMIT ?
		)`,
		keep,
	)
	return err
}

func (r *ScanRepository) detectionsFor(scanID string) ([]match.Detection, error) {
	rows, err := r.db.Query(
		`SELECT template, count, confidence, positions, error
		 FROM detections WHERE scan_id = ? ORDER BY id`,
		scanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []match.Detection
	for rows.Next() {
		var d match.Detection
		var positions string

		if err := rows.Scan(&d.Template, &d.Count, &d.Confidence, &positions, &d.Err); err != nil {
			return nil, err
		}

		var pts []point
		if err := json.Unmarshal([]byte(positions), &pts); err != nil {
			return nil, fmt.Errorf("decode positions for %s: %w", d.Template, err)
		}
		for _, p := range pts {
			d.Positions = append(d.Positions, image.Pt(p.X, p.Y))
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

// point is the JSON shape positions are stored in; image.Point marshals with
// no field tags, so a stable explicit form is used instead.
type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func pointList(pts []image.Point) []point {
	out := make([]point, len(pts))
	for i, p := range pts {
		out[i] = point{X: p.X, Y: p.Y}
	}
	return out
}
