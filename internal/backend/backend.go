// Package backend builds the ledger the export worker writes to.
package backend

import (
	"context"

	"wallet/internal/ledger"
)

// CleanupFunc releases the resources held by a sink.
type CleanupFunc func() error

// Result is a ready sink and its cleanup.
type Result struct {
	Sink    ledger.Writer
	Cleanup CleanupFunc
}

// Factory creates ledger sinks.
type Factory interface {
	CreateSink(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type Type

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// Type names a ledger backend as written in LEDGER_BACKEND.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
