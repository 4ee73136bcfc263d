package sensor

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
)

const (
	categoryYNAB         = "YNAB Summary"
	categoryTransactions = "Transaction Summary"
	categoryAnalytics    = "Analytics"
)

type valueKind int

const (
	kindMoney valueKind = iota
	kindDate
	kindBool
)

// Window sums transactions over a period. Outflow is reported as a positive amount.
type Window struct {
	Inflow  core.Money
	Outflow core.Money
	Net     core.Money
}

func (w *Window) add(amount core.Money) {
	switch {
	case amount.IsPositive():
		w.Inflow = w.Inflow.Add(amount)
	case amount.IsNegative():
		w.Outflow = w.Outflow.Add(amount.Abs())
	}
	w.Net = w.Net.Add(amount)
}

// Upcoming is the earliest scheduled transaction of one sign.
type Upcoming struct {
	Found  bool
	Date   core.Date
	Amount core.Money
}

// Figures are the summary values derived from one snapshot.
type Figures struct {
	Today core.Date

	CashBalance    core.Money
	CashLiquid     core.Money
	CashFrozen     core.Money
	CashDeepFreeze core.Money
	CreditBalance  core.Money

	TodayTransactions Window
	Next7Days         Window
	Next30Days        Window

	NextInflow  Upcoming
	NextOutflow Upcoming

	OutflowUntilNextInflow core.Money
	CanPayOffCards         bool

	NetWorth    core.Money
	StudentDebt core.Money
	CarLoan     core.Money
	StockValue  core.Money
}

type summaryDef struct {
	key      string
	name     string
	icon     string
	category string
	kind     valueKind
	value    func(f Figures) any
}

const (
	iconInflow  = "mdi:arrow-down-bold-circle-outline"
	iconOutflow = "mdi:arrow-up-bold-circle-outline"
	iconNet     = "mdi:swap-vertical-bold"
)

var summaryDefs = []summaryDef{
	{"ynab_cash_balance", "YNAB Cash Balance", "mdi:cash", categoryYNAB, kindMoney, func(f Figures) any { return f.CashBalance }},
	{"ynab_cash_liquid", "YNAB Cash Liquid", "mdi:cash-fast", categoryYNAB, kindMoney, func(f Figures) any { return f.CashLiquid }},
	{"ynab_cash_frozen", "YNAB Cash Frozen", "mdi:cash-lock", categoryYNAB, kindMoney, func(f Figures) any { return f.CashFrozen }},
	{"ynab_cash_deep_freeze", "YNAB Cash Deep Freeze", "mdi:cash-lock-open", categoryYNAB, kindMoney, func(f Figures) any { return f.CashDeepFreeze }},
	{"ynab_credit_balance", "YNAB Credit Balance", "mdi:credit-card", categoryYNAB, kindMoney, func(f Figures) any { return f.CreditBalance }},

	{"transactions_today_inflow", "Transactions Today Inflow", iconInflow, categoryTransactions, kindMoney, func(f Figures) any { return f.TodayTransactions.Inflow }},
	{"transactions_today_outflow", "Transactions Today Outflow", iconOutflow, categoryTransactions, kindMoney, func(f Figures) any { return f.TodayTransactions.Outflow }},
	{"transactions_today_net", "Transactions Today Net", iconNet, categoryTransactions, kindMoney, func(f Figures) any { return f.TodayTransactions.Net }},

	{"scheduled_next_7_days_inflow", "Scheduled Next 7 Days Inflow", iconInflow, categoryTransactions, kindMoney, func(f Figures) any { return f.Next7Days.Inflow }},
	{"scheduled_next_7_days_outflow", "Scheduled Next 7 Days Outflow", iconOutflow, categoryTransactions, kindMoney, func(f Figures) any { return f.Next7Days.Outflow }},
	{"scheduled_next_7_days_net", "Scheduled Next 7 Days Net", iconNet, categoryTransactions, kindMoney, func(f Figures) any { return f.Next7Days.Net }},

	{"scheduled_next_30_days_inflow", "Scheduled Next 30 Days Inflow", iconInflow, categoryTransactions, kindMoney, func(f Figures) any { return f.Next30Days.Inflow }},
	{"scheduled_next_30_days_outflow", "Scheduled Next 30 Days Outflow", iconOutflow, categoryTransactions, kindMoney, func(f Figures) any { return f.Next30Days.Outflow }},
	{"scheduled_next_30_days_net", "Scheduled Next 30 Days Net", iconNet, categoryTransactions, kindMoney, func(f Figures) any { return f.Next30Days.Net }},

	{"scheduled_next_inflow_date", "Scheduled Next Inflow Date", "mdi:calendar-arrow-down", categoryTransactions, kindDate, func(f Figures) any { return f.NextInflow }},
	{"scheduled_next_inflow_amount", "Scheduled Next Inflow Amount", "mdi:cash-plus", categoryTransactions, kindMoney, func(f Figures) any { return f.NextInflow.Amount }},
	{"scheduled_next_outflow_date", "Scheduled Next Outflow Date", "mdi:calendar-arrow-up", categoryTransactions, kindDate, func(f Figures) any { return f.NextOutflow }},
	{"scheduled_next_outflow_amount", "Scheduled Next Outflow Amount", "mdi:cash-minus", categoryTransactions, kindMoney, func(f Figures) any { return f.NextOutflow.Amount }},

	{"total_outflow_until_next_inflow", "Total Outflow Until Next Inflow", "mdi:cash-sync", categoryAnalytics, kindMoney, func(f Figures) any { return f.OutflowUntilNextInflow }},
	{"can_pay_off_cards_in_full", "Can Pay Off Cards In Full", "mdi:credit-card-check-outline", categoryAnalytics, kindBool, func(f Figures) any { return f.CanPayOffCards }},

	{"analytics_net_worth", "Analytics Net Worth", "mdi:chart-line", categoryAnalytics, kindMoney, func(f Figures) any { return f.NetWorth }},
	{"analytics_total_student_debt", "Analytics Total Student Debt", "mdi:school-outline", categoryAnalytics, kindMoney, func(f Figures) any { return f.StudentDebt }},
	{"analytics_total_car_loan", "Analytics Total Car Loan", "mdi:car-outline", categoryAnalytics, kindMoney, func(f Figures) any { return f.CarLoan }},
	{"analytics_total_stock_value", "Analytics Total Stock Value", "mdi:finance", categoryAnalytics, kindMoney, func(f Figures) any { return f.StockValue }},
}

// SummaryKeys lists the summary sensor keys in publication order.
func SummaryKeys() []string {
	keys := make([]string, len(summaryDefs))
	for i, d := range summaryDefs {
		keys[i] = d.key
	}
	return keys
}

// SummaryEntityID returns the entity ID of a summary sensor key.
func SummaryEntityID(key string) string {
	return EntityID(uniqueID("summary", key))
}

func formatValue(kind valueKind, v any) string {
	switch kind {
	case kindDate:
		u := v.(Upcoming)
		if !u.Found {
			return StateUnknown
		}
		return u.Date.String()
	case kindBool:
		if v.(bool) {
			return "True"
		}
		return "False"
	default:
		return v.(core.Money).Format()
	}
}

func (b *Builder) summaryStates(snap *core.Snapshot, f Figures, available bool) []State {
	states := make([]State, 0, len(summaryDefs))
	for _, d := range summaryDefs {
		id := uniqueID("summary", d.key)
		s := State{
			EntityID:   EntityID(id),
			UniqueID:   id,
			Family:     FamilySummary,
			Name:       d.name,
			State:      formatValue(d.kind, d.value(f)),
			Icon:       d.icon,
			Category:   d.category,
			Device:     b.categoryDevice(d.category),
			Available:  available && (!strings.HasPrefix(d.key, "ynab_") || snap.Has(core.SectionAccounts)),
			Attributes: map[string]any{"attribution": Attribution},
		}
		switch d.kind {
		case kindMoney:
			b.monetary(&s)
		case kindDate:
			s.DeviceClass = DeviceClassDate
		}
		states = append(states, s)
	}
	return states
}

func moneyFromDecimal(d decimal.Decimal) core.Money {
	return core.Money{Milli: d.Shift(3).Round(0).IntPart()}
}

// scheduledItem is a scheduled transaction with a parsed next date.
type scheduledItem struct {
	date   core.Date
	amount core.Money
}

func upcomingScheduled(snap *core.Snapshot) []scheduledItem {
	items := make([]scheduledItem, 0, len(snap.ScheduledTransactions))
	for _, st := range snap.ScheduledTransactions {
		d, err := core.ParseDate(st.DateNext)
		if err != nil {
			continue
		}
		items = append(items, scheduledItem{date: d, amount: st.Amount})
	}
	return items
}

// earliest returns the first item dated today or later whose amount passes
// keep. Ties keep list order.
func earliest(items []scheduledItem, today core.Date, keep func(core.Money) bool) Upcoming {
	var best Upcoming
	for _, it := range items {
		if it.date.Before(today) || !keep(it.amount) {
			continue
		}
		if !best.Found || it.date.Before(best.Date) {
			best = Upcoming{Found: true, Date: it.date, Amount: it.amount}
		}
	}
	return best
}

func computeFigures(snap *core.Snapshot, today core.Date, assets map[string]assetValue) Figures {
	f := Figures{Today: today}

	for _, a := range snap.Accounts {
		// Allocations count for every cash-type account, deleted and closed included.
		if a.IsCash() {
			f.CashLiquid = f.CashLiquid.Add(a.AllocationLiquid)
			f.CashFrozen = f.CashFrozen.Add(a.AllocationFrozen)
			f.CashDeepFreeze = f.CashDeepFreeze.Add(a.AllocationDeepFreeze)
		}
		if a.Deleted || a.Closed {
			continue
		}
		if a.IsCash() {
			f.CashBalance = f.CashBalance.Add(a.Balance)
		}
		f.NetWorth = f.NetWorth.Add(a.Balance)
	}

	for _, c := range snap.CreditCards {
		if c.Closed || c.Deleted {
			continue
		}
		f.CreditBalance = f.CreditBalance.Add(c.Balance)
		f.NetWorth = f.NetWorth.Add(c.Balance)
	}

	for _, v := range assets {
		m := moneyFromDecimal(v.value)
		f.NetWorth = f.NetWorth.Add(m)
		if strings.EqualFold(v.typeName, core.AssetTypeStocks) {
			f.StockValue = f.StockValue.Add(m)
		}
	}

	for _, l := range snap.Liabilities {
		if l.Closed || l.Deleted {
			continue
		}
		f.NetWorth = f.NetWorth.Add(l.Balance)
		switch strings.ToLower(l.LiabilityType) {
		case core.LiabilityStudentLoan:
			f.StudentDebt = f.StudentDebt.Add(l.Balance.Abs())
		case core.LiabilityAutoLoan:
			f.CarLoan = f.CarLoan.Add(l.Balance.Abs())
		}
	}

	for _, t := range snap.Transactions {
		d, err := core.ParseDate(t.Date)
		if err != nil || !d.Equal(today) {
			continue
		}
		f.TodayTransactions.add(t.Amount)
	}

	scheduled := upcomingScheduled(snap)
	for _, it := range scheduled {
		if it.date.InRange(today, today.AddDays(7)) {
			f.Next7Days.add(it.amount)
		}
		if it.date.InRange(today, today.AddDays(30)) {
			f.Next30Days.add(it.amount)
		}
	}

	f.NextInflow = earliest(scheduled, today, core.Money.IsPositive)
	f.NextOutflow = earliest(scheduled, today, core.Money.IsNegative)
	f.NextOutflow.Amount = f.NextOutflow.Amount.Abs()

	if f.NextInflow.Found {
		var total core.Money
		for _, it := range scheduled {
			if it.amount.IsNegative() && it.date.InRange(today, f.NextInflow.Date) {
				total = total.Add(it.amount)
			}
		}
		f.OutflowUntilNextInflow = total.Abs()
	}

	f.CanPayOffCards = f.CashLiquid.Add(f.CreditBalance).Milli >= 0

	return f
}
