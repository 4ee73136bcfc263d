// Package hass is a small client for the Home Assistant REST API.
package hass

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// States Home Assistant uses for entities without a value.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// Entity is one element of GET /api/states.
type Entity struct {
	ID          string     `json:"entity_id"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged string     `json:"last_changed"` // "2023-12-27T15:28:26.287133+00:00"
	LastUpdated string     `json:"last_updated"`
	Context     Context    `json:"context"`
}

// Attributes keeps the well-known presentation fields and every raw attribute.
type Attributes struct {
	FriendlyName      string `json:"friendly_name"`
	DeviceClass       string `json:"device_class"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
	Icon              string `json:"icon"`

	Raw map[string]any `json:"-"`
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	type plain Attributes
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Attributes(p)
	a.Raw = raw
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	if a.Raw != nil {
		return json.Marshal(a.Raw)
	}
	type plain Attributes
	return json.Marshal(plain(a))
}

type Context struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	UserID   string `json:"user_id"`
}

// Numeric parses the state as a number. unknown, unavailable and
// non-numeric states are not numbers.
func (e *Entity) Numeric() (float64, bool) {
	s := strings.TrimSpace(e.State)
	switch strings.ToLower(s) {
	case "", StateUnknown, StateUnavailable:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stateRequest is the body of POST /api/states/<entity_id>.
type stateRequest struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
