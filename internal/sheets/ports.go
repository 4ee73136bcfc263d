package sheets

import (
	"context"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotWriter stores one row per day. Writing a day twice replaces
	// the earlier row.
	SnapshotWriter interface {
		AppendRow(ctx context.Context, s core.DailySummary) (rowRef string, err error)
	}
)

// Header is the column layout shared by every writer.
var Header = []string{"Date", "Net Worth", "Cash Balance", "Credit Balance", "Liquid Cash", "Scheduled Net 30d"}

// Row renders s in Header order.
func Row(s core.DailySummary) []string {
	return []string{
		s.Day.String(),
		s.NetWorth.Format(),
		s.CashBalance.Format(),
		s.CreditBalance.Format(),
		s.LiquidCash.Format(),
		s.ScheduledNet30d.Format(),
	}
}
