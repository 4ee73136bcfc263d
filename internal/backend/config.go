package backend

import (
	"fmt"

	"github.com/chbarnhouse/ha-finance-assistant/internal/config"
)

// FromAppConfig converts the application config to backend config. A
// configured AMQP URL selects the broker sink.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sinkType := SQLiteSink
	if appConfig.AMQPEnabled() {
		sinkType = AMQPSink
	}

	return Config{
		Type: sinkType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid sink type: %s", c.Type)
	}
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if c.Type == AMQPSink {
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for the amqp sink")
		}
		if c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP exchange and queue are required for the amqp sink")
		}
	}
	return nil
}
