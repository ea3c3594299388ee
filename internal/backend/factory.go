package backend

import (
	"context"
	"fmt"

	"wallet/internal/ledger/google"
	"wallet/internal/ledger/memory"
	"wallet/internal/log"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentLedger)}
}

func (f *DefaultFactory) CreateSink(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsSink(ctx, config)
	case MemoryBackend:
		return f.createMemorySink()
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsSink(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets ledger: %w", err)
	}

	f.logger.Info("Initialized Google Sheets ledger",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &Result{
		Sink:    cli,
		Cleanup: func() error { return nil },
	}, nil
}

// createMemorySink keeps rows only for the life of the process.
func (f *DefaultFactory) createMemorySink() (*Result, error) {
	f.logger.Info("Initialized in-memory ledger")
	return &Result{
		Sink:    memory.New(),
		Cleanup: func() error { return nil },
	}, nil
}
