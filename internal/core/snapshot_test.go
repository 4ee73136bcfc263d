package core

import (
	"strings"
	"testing"
)

const sampleSnapshot = `{
  "accounts": [
    {"id": "a1", "name": "💰Checking", "account_type": "checking", "balance": 125000, "allocation_liquid": 100000},
    {"id": "a2", "name": "Broken", "balance": {"nested": true}},
    "not-an-object"
  ],
  "assets": [{"id": "s1", "name": "Brokerage", "value": 2500.5, "asset_type_id": "t1", "entity_id": "sensor.price", "shares": "10"}],
  "asset_types": [{"id": "t1", "name": "Stocks"}],
  "liabilities": {"unexpected": "shape"},
  "credit_cards": [],
  "manual_assets": {"s1": {"entity_id": "sensor.price"}},
  "config": {"include_ynab_emoji": false}
}`

func TestDecodeSnapshotTolerant(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.Valid {
		t.Fatalf("expected valid snapshot")
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].ID != "a1" {
		t.Fatalf("expected only the decodable account, got %+v", snap.Accounts)
	}
	if snap.Accounts[0].Balance.Milli != 125000 {
		t.Fatalf("balance: %d", snap.Accounts[0].Balance.Milli)
	}
	if !snap.Has(SectionAccounts) || !snap.Has(SectionCreditCards) {
		t.Fatalf("accounts and credit_cards should be present")
	}
	if snap.Has(SectionLiabilities) {
		t.Fatalf("liabilities with wrong shape must be absent")
	}
	if snap.Has(SectionTransactions) {
		t.Fatalf("missing section must be absent")
	}
	if snap.Config.IncludeYNABEmoji() {
		t.Fatalf("config not applied")
	}
	if name, ok := snap.AssetTypeName("t1"); !ok || name != "Stocks" {
		t.Fatalf("asset type lookup: %q %v", name, ok)
	}
	if v, ok := snap.Assets[0].YNABValue(); !ok || v != 2500.5 {
		t.Fatalf("asset value: %v %v", v, ok)
	}
	if _, ok := snap.ManualAssets["s1"]; !ok {
		t.Fatalf("manual assets not decoded")
	}
}

func TestDecodeSnapshotWarnings(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// two bad accounts and the liabilities object
	if len(snap.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %q", snap.Warnings)
	}
	if !strings.HasPrefix(snap.Warnings[0], "skipped accounts[1]") {
		t.Fatalf("first warning: %q", snap.Warnings[0])
	}
	if snap.Warnings[2] != "section liabilities is not a list" {
		t.Fatalf("section warning: %q", snap.Warnings[2])
	}

	clean, err := DecodeSnapshot([]byte(`{"accounts": []}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(clean.Warnings) != 0 {
		t.Fatalf("clean payload produced warnings: %q", clean.Warnings)
	}
}

func TestDecodeSnapshotNonObject(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`[1,2,3]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Valid || snap.Has(SectionAccounts) {
		t.Fatalf("non-object payload must produce an invalid, empty snapshot")
	}
	if len(snap.Warnings) != 1 {
		t.Fatalf("expected one warning, got %q", snap.Warnings)
	}
}

func TestDecodeSnapshotMalformed(t *testing.T) {
	if _, err := DecodeSnapshot([]byte(`{"accounts": [`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
