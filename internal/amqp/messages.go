package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
)

// SnapshotMessage carries the readings of one refresh from the bridge to the worker.
type SnapshotMessage struct {
	ID        uuid.UUID        `json:"id"`
	TakenAt   time.Time        `json:"taken_at"`
	Readings  []ReadingMessage `json:"readings"`
	Timestamp time.Time        `json:"timestamp"`
}

type ReadingMessage struct {
	EntityID string   `json:"entity_id"`
	State    string   `json:"state"`
	Value    *float64 `json:"value,omitempty"`
}

// NewSnapshotMessage converts a snapshot. An empty snapshot ID gets a fresh UUID.
func NewSnapshotMessage(snap core.SensorSnapshot) (*SnapshotMessage, error) {
	id := uuid.New()
	if snap.ID != "" {
		parsed, err := uuid.Parse(snap.ID)
		if err != nil {
			return nil, fmt.Errorf("snapshot ID %q: %w", snap.ID, err)
		}
		id = parsed
	}

	msg := &SnapshotMessage{
		ID:        id,
		TakenAt:   snap.TakenAt.UTC(),
		Readings:  make([]ReadingMessage, len(snap.Readings)),
		Timestamp: time.Now().UTC(),
	}
	for i, r := range snap.Readings {
		msg.Readings[i] = ReadingMessage{EntityID: r.EntityID, State: r.State, Value: r.Numeric}
	}
	return msg, nil
}

// Snapshot converts the message back to the domain type.
func (m *SnapshotMessage) Snapshot() core.SensorSnapshot {
	snap := core.SensorSnapshot{
		ID:       m.ID.String(),
		TakenAt:  m.TakenAt,
		Readings: make([]core.Reading, len(m.Readings)),
	}
	for i, r := range m.Readings {
		snap.Readings[i] = core.Reading{EntityID: r.EntityID, State: r.State, Numeric: r.Value}
	}
	return snap
}

func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON decodes and validates a message body.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == uuid.Nil {
		return nil, errors.New("snapshot message without id")
	}
	if msg.TakenAt.IsZero() {
		return nil, errors.New("snapshot message without taken_at")
	}
	return &msg, nil
}
