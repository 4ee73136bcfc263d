package core

import (
	"math"
	"strconv"
	"time"
)

// DailySummary is the compact end-of-day record exported to spreadsheets.
type DailySummary struct {
	Day             Date
	NetWorth        Money
	CashBalance     Money
	CreditBalance   Money
	LiquidCash      Money
	ScheduledNet30d Money
}

// Reading is one sensor value captured at refresh time.
type Reading struct {
	EntityID string
	State    string
	// Numeric is set when State parses as a number.
	Numeric *float64
}

// SensorSnapshot is the set of readings captured after one successful refresh.
type SensorSnapshot struct {
	ID       string
	TakenAt  time.Time
	Readings []Reading
}

// ReadingOf builds a Reading, parsing the numeric value when the state is a number.
func ReadingOf(entityID, state string) Reading {
	r := Reading{EntityID: entityID, State: state}
	if f, err := strconv.ParseFloat(state, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		r.Numeric = &f
	}
	return r
}

// Value returns the reading for entityID.
func (s SensorSnapshot) Value(entityID string) (Reading, bool) {
	for _, r := range s.Readings {
		if r.EntityID == entityID {
			return r, true
		}
	}
	return Reading{}, false
}
