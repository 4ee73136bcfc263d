// Package sensor turns add-on snapshots into Home Assistant sensor states.
package sensor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/metrics"
)

const (
	Domain         = "finance_assistant"
	Attribution    = "Data provided by YNAB"
	Manufacturer   = "Finance Assistant Addon"
	MainDeviceName = "Finance Assistant"

	DeviceClassMonetary = "monetary"
	DeviceClassDate     = "date"

	StateClassTotal       = "total"
	StateClassMeasurement = "measurement"

	// StateUnknown is the state of a date sensor with nothing scheduled.
	StateUnknown = "Unknown"
	// StateUnavailable is what Home Assistant shows for unavailable entities.
	StateUnavailable = "unavailable"
)

// Sensor families, used for devices and metrics.
const (
	FamilyAccount   = "account"
	FamilyAsset     = "asset"
	FamilyLiability = "liability"
	FamilyCard      = "card"
	FamilySummary   = "summary"
)

// Device groups sensors in Home Assistant. Category devices hang off the main device.
type Device struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	ViaDevice    string `json:"via_device,omitempty"`
}

// State is one rendered sensor.
type State struct {
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	Family      string         `json:"family"`
	Name        string         `json:"name"`
	State       string         `json:"state"`
	Icon        string         `json:"icon,omitempty"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Category    string         `json:"category"`
	Device      Device         `json:"device"`
	Available   bool           `json:"available"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// HAState returns the state string written to Home Assistant.
func (s State) HAState() string {
	if !s.Available {
		return StateUnavailable
	}
	return s.State
}

// HAAttributes merges presentation fields into the attribute map written to
// Home Assistant.
func (s State) HAAttributes() map[string]any {
	out := make(map[string]any, len(s.Attributes)+6)
	for k, v := range s.Attributes {
		out[k] = v
	}
	out["friendly_name"] = s.Name
	if s.Icon != "" {
		out["icon"] = s.Icon
	}
	if s.Unit != "" {
		out["unit_of_measurement"] = s.Unit
	}
	if s.DeviceClass != "" {
		out["device_class"] = s.DeviceClass
	}
	if s.StateClass != "" {
		out["state_class"] = s.StateClass
	}
	out["device"] = s.Device.Name
	return out
}

// PriceLookup resolves the numeric state of a Home Assistant entity, such as a
// stock price sensor linked to an asset.
type PriceLookup interface {
	Price(ctx context.Context, entityID string) (float64, bool)
}

type Options struct {
	// InstanceID identifies the main device. Defaults to the domain.
	InstanceID string
	Location   *time.Location
	Currency   string
	Prices     PriceLookup
	Now        func() time.Time
	Logger     *log.Logger
}

// Builder renders sensors and remembers the unique IDs of the last build so
// that a sensor whose source data disappears is reported unavailable once.
type Builder struct {
	instanceID string
	loc        *time.Location
	currency   string
	prices     PriceLookup
	now        func() time.Time
	logger     *log.Logger

	mu    sync.Mutex
	known map[string]State
}

func NewBuilder(opts Options) *Builder {
	b := &Builder{
		instanceID: opts.InstanceID,
		loc:        opts.Location,
		currency:   opts.Currency,
		prices:     opts.Prices,
		now:        opts.Now,
		logger:     opts.Logger,
		known:      make(map[string]State),
	}
	if b.instanceID == "" {
		b.instanceID = Domain
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.currency == "" {
		b.currency = "$"
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.logger == nil {
		b.logger = log.New(log.DefaultConfig())
	}
	b.logger = b.logger.WithComponent(log.ComponentSensor)
	return b
}

// MainDevice is the device every category device links to.
func (b *Builder) MainDevice() Device {
	return Device{
		Identifier:   b.instanceID,
		Name:         MainDeviceName,
		Manufacturer: Manufacturer,
	}
}

func (b *Builder) categoryDevice(category string) Device {
	key := strings.ReplaceAll(strings.ToLower(category), " ", "_")
	return Device{
		Identifier:   b.instanceID + "-" + key,
		Name:         MainDeviceName + " " + category,
		Manufacturer: Manufacturer,
		ViaDevice:    b.instanceID,
	}
}

// Today is the current calendar day in the configured zone.
func (b *Builder) Today() core.Date {
	return core.DateOf(b.now(), b.loc)
}

// Build renders every sensor for the snapshot. success reports whether the
// last refresh worked; when it did not, every sensor is unavailable.
func (b *Builder) Build(ctx context.Context, snap *core.Snapshot, success bool) []State {
	available := success && snap != nil && snap.Valid
	if snap == nil {
		snap = &core.Snapshot{}
	}
	cfg := snap.Config

	var states []State
	counts := map[string]int{}
	add := func(s State) {
		states = append(states, s)
		counts[s.Family]++
	}

	for _, a := range snap.Accounts {
		if a.Deleted {
			continue
		}
		add(b.accountState(a, cfg, available))
	}

	assetValues := make(map[string]assetValue, len(snap.Assets))
	for _, a := range snap.Assets {
		if a.Deleted {
			continue
		}
		s, v := b.assetState(ctx, snap, a, cfg, available)
		assetValues[a.ID] = v
		add(s)
	}

	for _, l := range snap.Liabilities {
		if l.Deleted || l.Closed {
			continue
		}
		add(b.liabilityState(l, cfg, available))
	}

	for _, c := range snap.CreditCards {
		if c.Deleted || c.Closed {
			continue
		}
		add(b.cardState(c, cfg, available))
	}

	figures := computeFigures(snap, b.Today(), assetValues)
	for _, s := range b.summaryStates(snap, figures, available) {
		add(s)
	}

	for _, family := range []string{FamilyAccount, FamilyAsset, FamilyLiability, FamilyCard, FamilySummary} {
		metrics.RecordSensorCount(family, counts[family])
	}

	return b.reconcile(states)
}

// reconcile records the current sensors and appends an unavailable copy of
// each sensor that was built before but is missing now. A vanished sensor is
// forgotten after that copy, so it is emitted once and known stays bounded by
// the live sensor set.
func (b *Builder) reconcile(states []State) []State {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := make(map[string]bool, len(states))
	for _, s := range states {
		current[s.UniqueID] = true
		b.known[s.UniqueID] = s
	}

	var gone []string
	for id := range b.known {
		if !current[id] {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		s := b.known[id]
		s.Available = false
		delete(b.known, id)
		states = append(states, s)
	}
	if len(gone) > 0 {
		b.logger.Debug("Sensors without source data marked unavailable", log.FieldCount, len(gone))
	}
	return states
}

func uniqueID(parts ...string) string {
	return Domain + "_" + strings.Join(parts, "_")
}

// EntityID derives the Home Assistant entity ID for a unique ID.
func EntityID(uniqueID string) string {
	return "sensor." + Slugify(uniqueID)
}

// Slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into one underscore.
func Slugify(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return sb.String()
}

// attributes drops empty values the way the add-on's optional fields are
// expected to disappear from the entity.
type attributes map[string]any

func (a attributes) set(key string, v any) {
	switch x := v.(type) {
	case nil:
		return
	case string:
		if x == "" {
			return
		}
	case *bool:
		if x == nil {
			return
		}
		a[key] = *x
		return
	}
	a[key] = v
}
