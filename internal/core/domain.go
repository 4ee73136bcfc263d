package core

import (
	"errors"
	"strings"
	"time"
)

// Account types the add-on uses for cash-like accounts.
const (
	AccountChecking = "checking"
	AccountSavings  = "savings"
	AccountCash     = "cash"
)

// Liability types with dedicated icons and analytics.
const (
	LiabilityStudentLoan = "student loan"
	LiabilityAutoLoan    = "auto loan"
)

// AssetTypeStocks is the asset type name used for brokerage positions.
const AssetTypeStocks = "stocks"

type (
	// Date is a calendar day. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	// Money is an amount in YNAB milliunits (1000 = one currency unit).
	Money struct {
		Milli int64
	}

	// Account is a budget account as returned by the add-on, including the
	// manual fields (bank, allocations, notes) the add-on merges into it.
	Account struct {
		ID                   string `json:"id"`
		Name                 string `json:"name"`
		Type                 string `json:"type"`
		AccountType          string `json:"account_type"`
		Bank                 string `json:"bank"`
		IncludeBankInName    *bool  `json:"include_bank_in_name"`
		Last4Digits          any    `json:"last_4_digits"`
		OnBudget             *bool  `json:"on_budget"`
		Closed               bool   `json:"closed"`
		Deleted              bool   `json:"deleted"`
		Balance              Money  `json:"balance"`
		ClearedBalance       Money  `json:"cleared_balance"`
		UnclearedBalance     Money  `json:"uncleared_balance"`
		TransferPayeeID      any    `json:"transfer_payee_id"`
		DirectImportLinked   *bool  `json:"direct_import_linked"`
		DirectImportInError  *bool  `json:"direct_import_in_error"`
		LastReconciledAt     any    `json:"last_reconciled_at"`
		DebtOriginalBalance  Money  `json:"debt_original_balance"`
		DebtInterestRates    any    `json:"debt_interest_rates"`
		DebtMinimumPayments  any    `json:"debt_minimum_payments"`
		DebtEscrowAmounts    any    `json:"debt_escrow_amounts"`
		AllocationLiquid     Money  `json:"allocation_liquid"`
		AllocationFrozen     Money  `json:"allocation_frozen"`
		AllocationDeepFreeze Money  `json:"allocation_deep_freeze"`
		Notes                any    `json:"notes"`
	}

	// Asset is a tracked asset. Value is expressed in currency units, not
	// milliunits. EntityID and Shares link the asset to a price sensor.
	Asset struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		Type               string `json:"type"`
		YNABType           string `json:"ynab_type"`
		AssetTypeID        string `json:"asset_type_id"`
		OnBudget           *bool  `json:"on_budget"`
		Deleted            bool   `json:"deleted"`
		Value              any    `json:"value"`
		ValueLastUpdatedOn any    `json:"ynab_value_last_updated_on"`
		EntityID           string `json:"entity_id"`
		Shares             any    `json:"shares"`
	}

	AssetType struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Liability is a loan or other debt account. Balances are negative.
	Liability struct {
		ID                  string `json:"id"`
		Name                string `json:"name"`
		Type                string `json:"type"`
		YNABType            string `json:"ynab_type"`
		LiabilityType       string `json:"liability_type"`
		Bank                string `json:"bank"`
		OnBudget            *bool  `json:"on_budget"`
		Closed              bool   `json:"closed"`
		Deleted             bool   `json:"deleted"`
		Balance             Money  `json:"balance"`
		ClearedBalance      Money  `json:"cleared_balance"`
		UnclearedBalance    Money  `json:"uncleared_balance"`
		TransferPayeeID     any    `json:"transfer_payee_id"`
		LastReconciledAt    any    `json:"last_reconciled_at"`
		ValueLastUpdatedOn  any    `json:"ynab_value_last_updated_on"`
		StartingBalance     any    `json:"starting_balance"`
		StartDate           any    `json:"start_date"`
		InterestRate        any    `json:"interest_rate"`
		DebtOriginalBalance Money  `json:"debt_original_balance"`
		DebtInterestRates   any    `json:"debt_interest_rates"`
		DebtMinimumPayments any    `json:"debt_minimum_payments"`
		DebtEscrowAmounts   any    `json:"debt_escrow_amounts"`
		Notes               any    `json:"notes"`
	}

	// CreditCard is a credit card account with the reward details the add-on
	// stores alongside it. Balances are negative.
	CreditCard struct {
		ID                  string `json:"id"`
		Name                string `json:"name"`
		CardName            string `json:"card_name"`
		Type                string `json:"type"`
		Bank                string `json:"bank"`
		IncludeBankInName   *bool  `json:"include_bank_in_name"`
		Last4Digits         any    `json:"last_4_digits"`
		ExpirationDate      any    `json:"expiration_date"`
		AutoPayDay1         any    `json:"auto_pay_day_1"`
		AutoPayDay2         any    `json:"auto_pay_day_2"`
		CreditLimit         any    `json:"credit_limit"`
		PaymentMethods      any    `json:"payment_methods"`
		Notes               any    `json:"notes"`
		Note                any    `json:"note"`
		OnBudget            *bool  `json:"on_budget"`
		Closed              bool   `json:"closed"`
		Deleted             bool   `json:"deleted"`
		Balance             Money  `json:"balance"`
		ClearedBalance      Money  `json:"cleared_balance"`
		UnclearedBalance    Money  `json:"uncleared_balance"`
		TransferPayeeID     any    `json:"transfer_payee_id"`
		LastReconciledAt    any    `json:"last_reconciled_at"`
		RewardStructureType any    `json:"reward_structure_type"`
		BaseRate            any    `json:"base_rate"`
		RewardSystem        any    `json:"reward_system"`
		PointsProgram       any    `json:"points_program"`
		StaticRewards       any    `json:"static_rewards"`
		RotatingRules       any    `json:"rotating_rules"`
		DynamicTiers        any    `json:"dynamic_tiers"`
		RotationPeriod      any    `json:"rotation_period"`
		ActivationPeriod    any    `json:"activation_period"`
	}

	Transaction struct {
		ID        string `json:"id"`
		Date      string `json:"date"`
		Amount    Money  `json:"amount"`
		AccountID string `json:"account_id"`
		PayeeName string `json:"payee_name"`
		Memo      string `json:"memo"`
	}

	// ScheduledTransaction is a recurring transaction. DateNext is the next
	// occurrence and drives every forward-looking summary.
	ScheduledTransaction struct {
		ID        string `json:"id"`
		DateFirst string `json:"date_first"`
		DateNext  string `json:"date_next"`
		Frequency string `json:"frequency"`
		Amount    Money  `json:"amount"`
		AccountID string `json:"account_id"`
		PayeeName string `json:"payee_name"`
		Memo      string `json:"memo"`
	}

	// AddonConfig holds the add-on options that change how sensors render.
	AddonConfig struct {
		IncludeYNABEmojiOpt        *bool `json:"include_ynab_emoji"`
		UseCalculatedAssetValueOpt *bool `json:"use_calculated_asset_value"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// IncludeYNABEmoji reports whether emoji prefixes stay in sensor names. Defaults to true.
func (c AddonConfig) IncludeYNABEmoji() bool {
	if c.IncludeYNABEmojiOpt == nil {
		return true
	}
	return *c.IncludeYNABEmojiOpt
}

// UseCalculatedAssetValue reports whether linked price sensors override the
// YNAB asset value. Defaults to false.
func (c AddonConfig) UseCalculatedAssetValue() bool {
	if c.UseCalculatedAssetValueOpt == nil {
		return false
	}
	return *c.UseCalculatedAssetValueOpt
}

// IsCash reports whether the account counts towards cash balances.
func (a Account) IsCash() bool {
	switch strings.ToLower(a.AccountType) {
	case AccountChecking, AccountSavings, AccountCash:
		return true
	}
	return false
}

// BankInName reports whether the bank prefixes the display name. Defaults to true.
func (a Account) BankInName() bool {
	return a.IncludeBankInName == nil || *a.IncludeBankInName
}

// BankInName reports whether the bank prefixes the display name. Defaults to true.
func (c CreditCard) BankInName() bool {
	return c.IncludeBankInName == nil || *c.IncludeBankInName
}

// DisplayName prefers the manual card name over the YNAB account name.
func (c CreditCard) DisplayName() string {
	if strings.TrimSpace(c.CardName) != "" {
		return c.CardName
	}
	return c.Name
}

// TypeName returns the YNAB type, preferring the explicit ynab_type field.
func (l Liability) TypeName() string {
	if l.YNABType != "" {
		return l.YNABType
	}
	return l.Type
}

// TypeName returns the YNAB type, preferring the explicit ynab_type field.
func (a Asset) TypeName() string {
	if a.YNABType != "" {
		return a.YNABType
	}
	return a.Type
}

// YNABValue returns the asset value in currency units when the add-on sent a number.
func (a Asset) YNABValue() (float64, bool) {
	switch v := a.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
