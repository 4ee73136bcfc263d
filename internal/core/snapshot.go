package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot section keys as served by the add-on's /all_data endpoint.
const (
	SectionAccounts              = "accounts"
	SectionAssets                = "assets"
	SectionAssetTypes            = "asset_types"
	SectionLiabilities           = "liabilities"
	SectionCreditCards           = "credit_cards"
	SectionTransactions          = "transactions"
	SectionScheduledTransactions = "scheduled_transactions"
	SectionManualAssets          = "manual_assets"
	SectionConfig                = "config"
)

// Snapshot is one decoded /all_data payload.
type Snapshot struct {
	Accounts              []Account
	Assets                []Asset
	AssetTypes            []AssetType
	Liabilities           []Liability
	CreditCards           []CreditCard
	Transactions          []Transaction
	ScheduledTransactions []ScheduledTransaction
	ManualAssets          map[string]json.RawMessage
	Config                AddonConfig

	// Valid is false when the payload was not a JSON object.
	Valid bool

	// Warnings describes the parts of the payload that were dropped while
	// decoding. The caller decides how to log them.
	Warnings []string

	present map[string]bool
}

// Has reports whether the payload carried the section in a usable shape.
func (s *Snapshot) Has(section string) bool {
	if s == nil {
		return false
	}
	return s.present[section]
}

// AssetTypeName resolves an asset type ID to its display name.
func (s *Snapshot) AssetTypeName(id string) (string, bool) {
	if s == nil || id == "" {
		return "", false
	}
	for _, t := range s.AssetTypes {
		if t.ID == id {
			return t.Name, true
		}
	}
	return "", false
}

// DecodeSnapshot decodes an /all_data payload tolerantly: list items that do
// not decode are skipped, sections of the wrong shape are treated as absent,
// and a payload that is not an object yields an empty, invalid snapshot.
// Only malformed JSON is an error.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	snap := &Snapshot{present: map[string]bool{}}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return snap, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode snapshot: malformed JSON")
	}
	if trimmed[0] != '{' {
		snap.warnf("payload is not an object (starts with %q)", trimmed[0])
		return snap, nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &sections); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Valid = true

	snap.Accounts = decodeSection[Account](snap, sections, SectionAccounts)
	snap.Assets = decodeSection[Asset](snap, sections, SectionAssets)
	snap.AssetTypes = decodeSection[AssetType](snap, sections, SectionAssetTypes)
	snap.Liabilities = decodeSection[Liability](snap, sections, SectionLiabilities)
	snap.CreditCards = decodeSection[CreditCard](snap, sections, SectionCreditCards)
	snap.Transactions = decodeSection[Transaction](snap, sections, SectionTransactions)
	snap.ScheduledTransactions = decodeSection[ScheduledTransaction](snap, sections, SectionScheduledTransactions)

	if raw, ok := sections[SectionManualAssets]; ok {
		var manual map[string]json.RawMessage
		if err := json.Unmarshal(raw, &manual); err == nil && manual != nil {
			snap.ManualAssets = manual
			snap.present[SectionManualAssets] = true
		}
	}

	if raw, ok := sections[SectionConfig]; ok {
		var cfg AddonConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			snap.warnf("ignoring malformed config: %v", err)
		} else {
			snap.Config = cfg
			snap.present[SectionConfig] = true
		}
	}

	return snap, nil
}

func (s *Snapshot) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func decodeSection[T any](snap *Snapshot, sections map[string]json.RawMessage, key string) []T {
	raw, ok := sections[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		snap.warnf("section %s is not a list", key)
		return nil
	}
	snap.present[key] = true

	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			snap.warnf("skipped %s[%d]: %v", key, i, err)
			continue
		}
		out = append(out, v)
	}
	return out
}
