package backend

import (
	"context"

	"github.com/chbarnhouse/ha-finance-assistant/internal/services"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sheets"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// SinkResult holds the snapshot sink of the bridge. Repository is always
// opened because registration and the history API read it directly.
type SinkResult struct {
	Sink       services.SnapshotSink
	Repository *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// Factory creates the bridge's snapshot sink and the worker's sheet writer.
type Factory interface {
	CreateSink(ctx context.Context, config Config) (*SinkResult, error)
	CreateWriter(ctx context.Context, config Config) (sheets.SnapshotWriter, error)
}

// Config holds configuration for sink and writer creation
type Config struct {
	Type SinkType

	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// SinkType selects where snapshots go after a refresh.
type SinkType string

const (
	// SQLiteSink writes snapshots straight into the history database.
	SQLiteSink SinkType = "sqlite"
	// AMQPSink publishes snapshot events for the worker.
	AMQPSink SinkType = "amqp"
)

// String implements fmt.Stringer
func (st SinkType) String() string {
	return string(st)
}

// IsValid returns true if the sink type is valid
func (st SinkType) IsValid() bool {
	switch st {
	case SQLiteSink, AMQPSink:
		return true
	default:
		return false
	}
}
