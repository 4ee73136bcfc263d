package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Integration struct {
	ID         int64
	Domain     string
	InstanceID string
	Title      string
	CreatedAt  int64
}

type SensorReading struct {
	ID           int64
	SnapshotID   string
	EntityID     string
	State        string
	NumericValue sql.NullFloat64
	TakenAt      int64
}

type Snapshot struct {
	ID           string
	TakenAt      int64
	ReadingCount int64
}

const insertIntegration = `INSERT INTO integration (domain, instance_id, title, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(domain) DO NOTHING`

type InsertIntegrationParams struct {
	Domain     string
	InstanceID string
	Title      string
	CreatedAt  int64
}

func (q *Queries) InsertIntegration(ctx context.Context, arg InsertIntegrationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertIntegration, arg.Domain, arg.InstanceID, arg.Title, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getIntegration = `SELECT id, domain, instance_id, title, created_at FROM integration WHERE domain = ?`

func (q *Queries) GetIntegration(ctx context.Context, domain string) (Integration, error) {
	row := q.db.QueryRowContext(ctx, getIntegration, domain)
	var i Integration
	err := row.Scan(&i.ID, &i.Domain, &i.InstanceID, &i.Title, &i.CreatedAt)
	return i, err
}

const insertSnapshot = `INSERT INTO snapshots (id, taken_at, reading_count)
VALUES (?, ?, ?)
ON CONFLICT(id) DO NOTHING`

type InsertSnapshotParams struct {
	ID           string
	TakenAt      int64
	ReadingCount int64
}

func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertSnapshot, arg.ID, arg.TakenAt, arg.ReadingCount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertReading = `INSERT INTO sensor_readings (snapshot_id, entity_id, state, numeric_value, taken_at)
VALUES (?, ?, ?, ?, ?)`

type InsertReadingParams struct {
	SnapshotID   string
	EntityID     string
	State        string
	NumericValue sql.NullFloat64
	TakenAt      int64
}

func (q *Queries) InsertReading(ctx context.Context, arg InsertReadingParams) error {
	_, err := q.db.ExecContext(ctx, insertReading, arg.SnapshotID, arg.EntityID, arg.State, arg.NumericValue, arg.TakenAt)
	return err
}

const listEntityReadings = `SELECT id, snapshot_id, entity_id, state, numeric_value, taken_at
FROM sensor_readings
WHERE entity_id = ?
ORDER BY taken_at DESC, id DESC
LIMIT ?`

type ListEntityReadingsParams struct {
	EntityID string
	Limit    int64
}

func (q *Queries) ListEntityReadings(ctx context.Context, arg ListEntityReadingsParams) ([]SensorReading, error) {
	rows, err := q.db.QueryContext(ctx, listEntityReadings, arg.EntityID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

const getLatestSnapshot = `SELECT id, taken_at, reading_count FROM snapshots ORDER BY taken_at DESC, rowid DESC LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot)
	var s Snapshot
	err := row.Scan(&s.ID, &s.TakenAt, &s.ReadingCount)
	return s, err
}

const listSnapshotReadings = `SELECT id, snapshot_id, entity_id, state, numeric_value, taken_at
FROM sensor_readings
WHERE snapshot_id = ?
ORDER BY id`

func (q *Queries) ListSnapshotReadings(ctx context.Context, snapshotID string) ([]SensorReading, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotReadings, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

const deleteReadingsBefore = `DELETE FROM sensor_readings WHERE snapshot_id IN (SELECT id FROM snapshots WHERE taken_at < ?)`

func (q *Queries) DeleteReadingsBefore(ctx context.Context, takenAt int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReadingsBefore, takenAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSnapshotsBefore = `DELETE FROM snapshots WHERE taken_at < ?`

func (q *Queries) DeleteSnapshotsBefore(ctx context.Context, takenAt int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSnapshotsBefore, takenAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getExport = `SELECT sheets_ref FROM daily_exports WHERE day = ?`

func (q *Queries) GetExport(ctx context.Context, day string) (string, error) {
	row := q.db.QueryRowContext(ctx, getExport, day)
	var ref string
	err := row.Scan(&ref)
	return ref, err
}

const insertExport = `INSERT INTO daily_exports (day, sheets_ref, exported_at) VALUES (?, ?, ?)
ON CONFLICT(day) DO UPDATE SET sheets_ref = excluded.sheets_ref, exported_at = excluded.exported_at`

type InsertExportParams struct {
	Day        string
	SheetsRef  string
	ExportedAt int64
}

func (q *Queries) InsertExport(ctx context.Context, arg InsertExportParams) error {
	_, err := q.db.ExecContext(ctx, insertExport, arg.Day, arg.SheetsRef, arg.ExportedAt)
	return err
}

func scanReadings(rows *sql.Rows) ([]SensorReading, error) {
	var items []SensorReading
	for rows.Next() {
		var i SensorReading
		if err := rows.Scan(&i.ID, &i.SnapshotID, &i.EntityID, &i.State, &i.NumericValue, &i.TakenAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
