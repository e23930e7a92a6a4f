package database

import (
	"fmt"
	"path/filepath"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// NewLedgerFromConfig creates a Ledger implementation based on the database config type.
func NewLedgerFromConfig(cfg config.DatabaseConfig) (tidy.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, "ledger.db"))
	case "memory":
		return NewMemoryLedger(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
