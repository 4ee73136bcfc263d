// Package core provides the budget data model shared by the bridge and the worker.
//
// This file contains the milliunit money type used for every YNAB amount
// and the conversions to display values.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MilliPerUnit is the number of YNAB milliunits in one currency unit.
const MilliPerUnit = 1000

// MoneyFromFloat converts a currency amount (e.g. 12.5 dollars) to milliunits,
// rounding half away from zero.
func MoneyFromFloat(f float64) Money {
	return Money{Milli: int64(math.Round(f * MilliPerUnit))}
}

// Float returns the amount in currency units for display and comparisons.
// Use Milli for arithmetic.
func (m Money) Float() float64 {
	return float64(m.Milli) / MilliPerUnit
}

// Cents returns the amount rounded to cents, half away from zero.
func (m Money) Cents() int64 {
	q := m.Milli / 10
	r := m.Milli % 10
	switch {
	case r >= 5:
		q++
	case r <= -5:
		q--
	}
	return q
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Milli: m.Milli + o.Milli}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m.Milli < 0 {
		return Money{Milli: -m.Milli}
	}
	return m
}

func (m Money) IsPositive() bool { return m.Milli > 0 }
func (m Money) IsNegative() bool { return m.Milli < 0 }

// Format renders the amount with exactly two decimals, e.g. "-12.35".
//
// Examples:
//
//	Money{Milli: 12345}.Format()  -> "12.35"
//	Money{Milli: -5}.Format()     -> "-0.01"
//	Money{Milli: 0}.Format()      -> "0.00"
func (m Money) Format() string {
	cents := m.Cents()
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (m Money) String() string {
	return m.Format()
}

// UnmarshalJSON accepts integer or fractional numbers, numeric strings and null.
// Null and empty strings decode to zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Milli = 0
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("money: %w", err)
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			m.Milli = 0
			return nil
		}
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		m.Milli = i
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	m.Milli = int64(math.Round(f))
	return nil
}

// MarshalJSON writes the raw milliunit integer, matching the add-on payloads.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Milli, 10)), nil
}
