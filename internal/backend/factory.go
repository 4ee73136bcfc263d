package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/chbarnhouse/ha-finance-assistant/internal/amqp"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sheets"
	gsheet "github.com/chbarnhouse/ha-finance-assistant/internal/sheets/google"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sheets/memory"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger}
}

// CreateSink implements Factory.CreateSink
func (f *DefaultFactory) CreateSink(ctx context.Context, config Config) (*SinkResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	switch config.Type {
	case SQLiteSink:
		f.logger.InfoContext(ctx, "Snapshots are written to SQLite", "db_path", config.SQLiteDBPath)
		return &SinkResult{Sink: repo, Repository: repo, Cleanup: repo.Close}, nil

	case AMQPSink:
		client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.InfoContext(ctx, "Snapshots are published to AMQP",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &SinkResult{
			Sink:       client,
			Repository: repo,
			Cleanup: func() error {
				return errors.Join(client.Close(), repo.Close())
			},
		}, nil

	default:
		repo.Close()
		return nil, fmt.Errorf("unsupported sink type: %s", config.Type)
	}
}

// CreateWriter implements Factory.CreateWriter
func (f *DefaultFactory) CreateWriter(ctx context.Context, config Config) (sheets.SnapshotWriter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.InfoContext(ctx, "No spreadsheet configured, daily summaries are kept in memory")
		return memory.New(), nil
	}

	cli, err := gsheet.NewClient(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Logger:          f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}
