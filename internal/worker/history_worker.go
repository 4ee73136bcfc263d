package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/amqp"
	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sheets"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

// HistoryStore is the part of the SQLite repository the worker needs.
type HistoryStore interface {
	SaveSnapshot(ctx context.Context, snap core.SensorSnapshot) error
	LatestReadings(ctx context.Context) (core.SensorSnapshot, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ExportRef(ctx context.Context, day core.Date) (string, error)
	MarkExported(ctx context.Context, day core.Date, ref string) error
}

// HistoryWorker persists snapshot events and runs the export and retention jobs.
type HistoryWorker struct {
	store     HistoryStore
	writer    sheets.SnapshotWriter
	location  *time.Location
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

func NewHistoryWorker(store HistoryStore, writer sheets.SnapshotWriter, location *time.Location, retention time.Duration, logger *log.Logger) *HistoryWorker {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &HistoryWorker{
		store:     store,
		writer:    writer,
		location:  location,
		retention: retention,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleSnapshot processes a single snapshot message from AMQP.
func (w *HistoryWorker) HandleSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error {
	w.logger.DebugContext(ctx, "Processing snapshot message",
		log.FieldSnapshotID, msg.ID,
		log.FieldCount, len(msg.Readings))

	if err := w.store.SaveSnapshot(ctx, msg.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ExportDaily writes the day of the latest snapshot to the sheet unless that
// day was already exported.
func (w *HistoryWorker) ExportDaily(ctx context.Context) (err error) {
	defer func() { metrics.RecordWorkerJob(log.OpExport, err) }()

	if w.writer == nil {
		return errors.New("no sheet writer configured")
	}

	latest, err := w.store.LatestReadings(ctx)
	if errors.Is(err, storage.ErrNoSnapshots) {
		w.logger.InfoContext(ctx, "Nothing to export yet", log.FieldOperation, log.OpExport)
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest readings: %w", err)
	}

	day := core.DateOf(latest.TakenAt, w.location)
	ref, err := w.store.ExportRef(ctx, day)
	switch {
	case err == nil:
		w.logger.InfoContext(ctx, "Day already exported",
			log.FieldOperation, log.OpExport,
			"day", day.String(),
			log.FieldSheetsRef, ref)
		return nil
	case !errors.Is(err, storage.ErrNotExported):
		return fmt.Errorf("export state: %w", err)
	}

	summary, err := DailySummaryOf(latest, day)
	if err != nil {
		return err
	}

	ref, err = w.writer.AppendRow(ctx, summary)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if err := w.store.MarkExported(ctx, day, ref); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Daily summary exported",
		log.FieldOperation, log.OpExport,
		log.FieldSnapshotID, latest.ID,
		"day", day.String(),
		log.FieldSheetsRef, ref)
	return nil
}

// Prune removes history older than the retention window.
func (w *HistoryWorker) Prune(ctx context.Context) (err error) {
	defer func() { metrics.RecordWorkerJob(log.OpPrune, err) }()

	cutoff := w.now().Add(-w.retention)
	if _, err := w.store.PruneBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// DailySummaryOf extracts the exported figures from a snapshot. The net worth
// reading is required; other figures default to zero.
func DailySummaryOf(snap core.SensorSnapshot, day core.Date) (core.DailySummary, error) {
	money := func(key string) (core.Money, bool) {
		r, ok := snap.Value(sensor.SummaryEntityID(key))
		if !ok || r.Numeric == nil {
			return core.Money{}, false
		}
		return core.MoneyFromFloat(*r.Numeric), true
	}

	netWorth, ok := money("analytics_net_worth")
	if !ok {
		return core.DailySummary{}, fmt.Errorf("snapshot %s has no net worth reading", snap.ID)
	}
	s := core.DailySummary{Day: day, NetWorth: netWorth}
	s.CashBalance, _ = money("ynab_cash_balance")
	s.CreditBalance, _ = money("ynab_credit_balance")
	s.LiquidCash, _ = money("ynab_cash_liquid")
	s.ScheduledNet30d, _ = money("scheduled_next_30_days_net")
	return s, nil
}
