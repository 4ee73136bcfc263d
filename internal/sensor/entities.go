package sensor

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

const (
	categoryAccounts    = "Accounts"
	categoryAssets      = "Assets"
	categoryLiabilities = "Liabilities"
	categoryCreditCards = "Credit Cards"
)

// assetValue is the value an asset sensor reports, in currency units.
type assetValue struct {
	value    decimal.Decimal
	typeName string
}

func (b *Builder) monetary(s *State) {
	s.DeviceClass = DeviceClassMonetary
	s.StateClass = StateClassTotal
	s.Unit = b.currency
}

func accountIcon(accountType string) string {
	switch strings.ToLower(accountType) {
	case core.AccountChecking:
		return "mdi:cash-fast"
	case core.AccountSavings:
		return "mdi:cash-clock"
	case core.AccountCash:
		return "mdi:cash"
	}
	return "mdi:cash-multiple"
}

func (b *Builder) accountState(a core.Account, cfg core.AddonConfig, available bool) State {
	id := uniqueID(a.ID)
	name := withBank(a.Bank, AccountName(a.Name, cfg.IncludeYNABEmoji()), a.BankInName())

	attrs := attributes{}
	attrs.set("ynab_id", a.ID)
	attrs.set("ynab_type", a.Type)
	attrs.set("account_type", a.AccountType)
	attrs.set("bank", a.Bank)
	attrs.set("last_4_digits", a.Last4Digits)
	attrs.set("on_budget", a.OnBudget)
	attrs.set("closed", a.Closed)
	attrs.set("cleared_balance", a.ClearedBalance.Float())
	attrs.set("uncleared_balance", a.UnclearedBalance.Float())
	attrs.set("transfer_payee_id", a.TransferPayeeID)
	attrs.set("direct_import_linked", a.DirectImportLinked)
	attrs.set("direct_import_in_error", a.DirectImportInError)
	attrs.set("last_reconciled_at", a.LastReconciledAt)
	attrs.set("debt_original_balance", a.DebtOriginalBalance.Float())
	attrs.set("debt_interest_rates", a.DebtInterestRates)
	attrs.set("debt_minimum_payments", a.DebtMinimumPayments)
	attrs.set("debt_escrow_amounts", a.DebtEscrowAmounts)
	attrs.set("deleted", a.Deleted)
	attrs.set("allocation_liquid", a.AllocationLiquid.Float())
	attrs.set("allocation_frozen", a.AllocationFrozen.Float())
	attrs.set("allocation_deep_freeze", a.AllocationDeepFreeze.Float())
	attrs.set("notes", a.Notes)

	s := State{
		EntityID:   EntityID(id),
		UniqueID:   id,
		Family:     FamilyAccount,
		Name:       name,
		State:      a.Balance.Format(),
		Icon:       accountIcon(a.AccountType),
		Category:   categoryAccounts,
		Device:     b.categoryDevice(categoryAccounts),
		Available:  available,
		Attributes: attrs,
	}
	b.monetary(&s)
	return s
}

func (b *Builder) assetState(ctx context.Context, snap *core.Snapshot, a core.Asset, cfg core.AddonConfig, available bool) (State, assetValue) {
	id := uniqueID("asset", a.ID)

	attrs := attributes{}
	attrs.set("ynab_id", a.ID)
	attrs.set("ynab_type", a.TypeName())
	attrs.set("on_budget", a.OnBudget)
	attrs.set("deleted", a.Deleted)

	typeName, ok := snap.AssetTypeName(a.AssetTypeID)
	if !ok && a.AssetTypeID != "" {
		b.logger.DebugContext(ctx, "Unknown asset type", "asset_id", a.ID, "asset_type_id", a.AssetTypeID)
	}
	attrs.set("asset_type", typeName)

	icon := "mdi:cash-plus"
	if strings.EqualFold(typeName, core.AssetTypeStocks) {
		icon = "mdi:finance"
	}

	value := decimal.Zero
	ynab, hasYNAB := a.YNABValue()
	if hasYNAB {
		value = decimal.NewFromFloat(ynab)
		attrs.set("ynab_value", ynab)
	}
	attrs.set("ynab_value_last_updated_on", a.ValueLastUpdatedOn)
	attrs.set("linked_entity_id", a.EntityID)
	attrs.set("shares", a.Shares)

	if calculated, ok := b.calculatedValue(ctx, a); ok {
		attrs.set("calculated_value", calculated.InexactFloat64())
		if cfg.UseCalculatedAssetValue() {
			value = calculated
		}
	}

	s := State{
		EntityID:   EntityID(id),
		UniqueID:   id,
		Family:     FamilyAsset,
		Name:       AssetName(a.Name, cfg.IncludeYNABEmoji()),
		State:      value.StringFixed(2),
		Icon:       icon,
		Category:   categoryAssets,
		Device:     b.categoryDevice(categoryAssets),
		Available:  available,
		Attributes: attrs,
	}
	b.monetary(&s)
	return s, assetValue{value: value, typeName: typeName}
}

// calculatedValue is price × shares rounded to cents. It needs a linked entity
// with a numeric state and a positive share count.
func (b *Builder) calculatedValue(ctx context.Context, a core.Asset) (decimal.Decimal, bool) {
	if a.EntityID == "" || b.prices == nil {
		return decimal.Zero, false
	}
	shares, ok := parseShares(a.Shares)
	if !ok {
		if a.Shares != nil {
			b.logger.WarnContext(ctx, "Invalid shares value", "asset_id", a.ID, "shares", a.Shares)
		}
		return decimal.Zero, false
	}
	price, ok := b.prices.Price(ctx, a.EntityID)
	if !ok {
		b.logger.WarnContext(ctx, "Linked entity has no usable price", "asset_id", a.ID, log.FieldEntityID, a.EntityID)
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(price).Mul(shares).Round(2), true
}

func parseShares(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch x := v.(type) {
	case float64:
		d = decimal.NewFromFloat(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(f)
	default:
		return decimal.Zero, false
	}
	if !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func liabilityIcon(liabilityType string) string {
	switch strings.ToLower(liabilityType) {
	case core.LiabilityStudentLoan:
		return "mdi:school"
	case core.LiabilityAutoLoan:
		return "mdi:car-side"
	}
	return "mdi:cash-minus"
}

func (b *Builder) liabilityState(l core.Liability, cfg core.AddonConfig, available bool) State {
	id := uniqueID("liability", l.ID)

	attrs := attributes{}
	attrs.set("ynab_id", l.ID)
	attrs.set("ynab_type", l.TypeName())
	attrs.set("liability_type", l.LiabilityType)
	attrs.set("bank", l.Bank)
	attrs.set("on_budget", l.OnBudget)
	attrs.set("closed", l.Closed)
	attrs.set("cleared_balance", l.ClearedBalance.Float())
	attrs.set("uncleared_balance", l.UnclearedBalance.Float())
	attrs.set("transfer_payee_id", l.TransferPayeeID)
	if l.ValueLastUpdatedOn != nil {
		attrs.set("last_reconciled_at", l.ValueLastUpdatedOn)
	} else {
		attrs.set("last_reconciled_at", l.LastReconciledAt)
	}
	attrs.set("deleted", l.Deleted)
	attrs.set("starting_balance", l.StartingBalance)
	attrs.set("start_date", l.StartDate)
	attrs.set("interest_rate", l.InterestRate)
	attrs.set("debt_original_balance", l.DebtOriginalBalance.Float())
	attrs.set("debt_interest_rates", l.DebtInterestRates)
	attrs.set("debt_minimum_payments", l.DebtMinimumPayments)
	attrs.set("debt_escrow_amounts", l.DebtEscrowAmounts)
	attrs.set("notes", l.Notes)

	s := State{
		EntityID:   EntityID(id),
		UniqueID:   id,
		Family:     FamilyLiability,
		Name:       ShortPrefixName(l.Name, cfg.IncludeYNABEmoji()),
		State:      l.Balance.Abs().Format(),
		Icon:       liabilityIcon(l.LiabilityType),
		Category:   categoryLiabilities,
		Device:     b.categoryDevice(categoryLiabilities),
		Available:  available,
		Attributes: attrs,
	}
	b.monetary(&s)
	return s
}

func (b *Builder) cardState(c core.CreditCard, cfg core.AddonConfig, available bool) State {
	id := uniqueID("card", c.ID)
	name := withBank(c.Bank, ShortPrefixName(c.DisplayName(), cfg.IncludeYNABEmoji()), c.BankInName())

	attrs := attributes{}
	attrs.set("ynab_id", c.ID)
	attrs.set("ynab_name", c.Name)
	attrs.set("ynab_type", c.Type)
	attrs.set("bank", c.Bank)
	attrs.set("last_4_digits", c.Last4Digits)
	attrs.set("expiration_date", c.ExpirationDate)
	attrs.set("auto_pay_day_1", c.AutoPayDay1)
	attrs.set("auto_pay_day_2", c.AutoPayDay2)
	attrs.set("credit_limit", c.CreditLimit)
	attrs.set("payment_methods", c.PaymentMethods)
	attrs.set("notes", c.Notes)
	attrs.set("ynab_note", c.Note)
	attrs.set("on_budget", c.OnBudget)
	attrs.set("closed", c.Closed)
	attrs.set("cleared_balance", c.ClearedBalance.Float())
	attrs.set("uncleared_balance", c.UnclearedBalance.Float())
	attrs.set("transfer_payee_id", c.TransferPayeeID)
	attrs.set("last_reconciled_at", c.LastReconciledAt)
	attrs.set("deleted", c.Deleted)
	attrs.set("reward_structure_type", c.RewardStructureType)
	attrs.set("base_rate", c.BaseRate)
	attrs.set("reward_system", c.RewardSystem)
	attrs.set("points_program", c.PointsProgram)
	attrs.set("static_rewards", c.StaticRewards)
	attrs.set("rotating_rules", c.RotatingRules)
	attrs.set("dynamic_tiers", c.DynamicTiers)
	attrs.set("rotation_period", c.RotationPeriod)
	attrs.set("activation_period", c.ActivationPeriod)

	s := State{
		EntityID:   EntityID(id),
		UniqueID:   id,
		Family:     FamilyCard,
		Name:       name,
		State:      c.Balance.Abs().Format(),
		Icon:       "mdi:credit-card",
		Category:   categoryCreditCards,
		Device:     b.categoryDevice(categoryCreditCards),
		Available:  available,
		Attributes: attrs,
	}
	b.monetary(&s)
	return s
}
