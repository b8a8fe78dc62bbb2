package database

import (
	"fmt"
	"log/slog"
)

// NewStore constructs an AssetStore for the configured driver. SQLite is the
// only local driver today; the factory keeps the door open for others without
// touching callers.
func NewStore(storeType, connectionString string) (AssetStore, error) {
	switch storeType {
	case "sqlite":
		store, err := NewSQLiteStore(connectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		slog.Info("asset store initialized", "type", storeType)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", storeType)
	}
}
