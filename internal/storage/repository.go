package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"

	_ "modernc.org/sqlite"
)

var (
	// ErrNoSnapshots is returned by LatestReadings on an empty history.
	ErrNoSnapshots = errors.New("no snapshots recorded")
	// ErrNotExported is returned by ExportRef for a day without an export.
	ErrNotExported = errors.New("day not exported")
)

// HistoryPoint is one stored reading of an entity.
type HistoryPoint struct {
	EntityID string    `json:"entity_id"`
	State    string    `json:"state"`
	Numeric  *float64  `json:"value,omitempty"`
	TakenAt  time.Time `json:"taken_at"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RegisterIntegration records the single bridge instance for domain. It
// reports false when an instance was already registered, which callers treat
// as "already configured".
func (r *SQLiteRepository) RegisterIntegration(ctx context.Context, domain, instanceID, title string) (bool, error) {
	n, err := r.queries.InsertIntegration(ctx, InsertIntegrationParams{
		Domain:     domain,
		InstanceID: instanceID,
		Title:      title,
		CreatedAt:  r.now().UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("register integration: %w", err)
	}
	if n == 0 {
		existing, err := r.queries.GetIntegration(ctx, domain)
		if err != nil {
			return false, fmt.Errorf("get integration: %w", err)
		}
		r.logger.InfoContext(ctx, "Integration already configured",
			"domain", domain,
			"instance_id", existing.InstanceID)
		return false, nil
	}
	r.logger.InfoContext(ctx, "Integration registered", "domain", domain, "instance_id", instanceID)
	return true, nil
}

// InstanceID returns the instance ID registered for domain.
func (r *SQLiteRepository) InstanceID(ctx context.Context, domain string) (string, error) {
	existing, err := r.queries.GetIntegration(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("get integration %s: %w", domain, err)
	}
	return existing.InstanceID, nil
}

// SaveSnapshot stores a snapshot and its readings. Saving the same snapshot
// ID twice is a no-op, so redelivered messages are harmless.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.SensorSnapshot) error {
	if snap.ID == "" {
		return errors.New("snapshot ID is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	takenAt := snap.TakenAt.UnixMilli()

	n, err := q.InsertSnapshot(ctx, InsertSnapshotParams{
		ID:           snap.ID,
		TakenAt:      takenAt,
		ReadingCount: int64(len(snap.Readings)),
	})
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if n == 0 {
		r.logger.DebugContext(ctx, "Snapshot already stored", log.FieldSnapshotID, snap.ID)
		return nil
	}

	for _, reading := range snap.Readings {
		var numeric sql.NullFloat64
		if reading.Numeric != nil {
			numeric = sql.NullFloat64{Float64: *reading.Numeric, Valid: true}
		}
		if err := q.InsertReading(ctx, InsertReadingParams{
			SnapshotID:   snap.ID,
			EntityID:     reading.EntityID,
			State:        reading.State,
			NumericValue: numeric,
			TakenAt:      takenAt,
		}); err != nil {
			return fmt.Errorf("insert reading %s: %w", reading.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved to SQLite",
		log.FieldSnapshotID, snap.ID,
		log.FieldCount, len(snap.Readings))
	return nil
}

// RecordSnapshot lets the repository act as the bridge's direct snapshot sink.
func (r *SQLiteRepository) RecordSnapshot(ctx context.Context, snap core.SensorSnapshot) error {
	err := r.SaveSnapshot(ctx, snap)
	metrics.RecordSnapshot("sqlite", err)
	return err
}

// History returns up to limit readings of entityID, newest first.
func (r *SQLiteRepository) History(ctx context.Context, entityID string, limit int) ([]HistoryPoint, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	rows, err := r.queries.ListEntityReadings(ctx, ListEntityReadingsParams{EntityID: entityID, Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("list readings for %s: %w", entityID, err)
	}

	points := make([]HistoryPoint, len(rows))
	for i, row := range rows {
		points[i] = HistoryPoint{
			EntityID: row.EntityID,
			State:    row.State,
			Numeric:  nullFloat(row.NumericValue),
			TakenAt:  time.UnixMilli(row.TakenAt).UTC(),
		}
	}
	return points, nil
}

// LatestReadings returns the most recent snapshot with its readings.
func (r *SQLiteRepository) LatestReadings(ctx context.Context) (core.SensorSnapshot, error) {
	s, err := r.queries.GetLatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SensorSnapshot{}, ErrNoSnapshots
	}
	if err != nil {
		return core.SensorSnapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}

	rows, err := r.queries.ListSnapshotReadings(ctx, s.ID)
	if err != nil {
		return core.SensorSnapshot{}, fmt.Errorf("list snapshot readings: %w", err)
	}

	snap := core.SensorSnapshot{
		ID:       s.ID,
		TakenAt:  time.UnixMilli(s.TakenAt).UTC(),
		Readings: make([]core.Reading, len(rows)),
	}
	for i, row := range rows {
		snap.Readings[i] = core.Reading{
			EntityID: row.EntityID,
			State:    row.State,
			Numeric:  nullFloat(row.NumericValue),
		}
	}
	return snap, nil
}

// PruneBefore deletes snapshots taken before cutoff and returns how many were removed.
func (r *SQLiteRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	readings, err := q.DeleteReadingsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	snapshots, err := q.DeleteSnapshotsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	r.logger.InfoContext(ctx, "History pruned",
		log.FieldOperation, log.OpPrune,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"snapshots", snapshots,
		"readings", readings)
	return snapshots, nil
}

// ExportRef returns the sheet reference of a finished daily export.
func (r *SQLiteRepository) ExportRef(ctx context.Context, day core.Date) (string, error) {
	ref, err := r.queries.GetExport(ctx, day.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotExported
	}
	if err != nil {
		return "", fmt.Errorf("get export: %w", err)
	}
	return ref, nil
}

// MarkExported records that day was written to the sheet.
func (r *SQLiteRepository) MarkExported(ctx context.Context, day core.Date, ref string) error {
	if err := r.queries.InsertExport(ctx, InsertExportParams{
		Day:        day.String(),
		SheetsRef:  ref,
		ExportedAt: r.now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
