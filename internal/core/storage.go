package core

import (
	"fmt"
	"os"

	"zonecore/internal/infra/persistence/memory"
	"zonecore/internal/infra/persistence/postgres"
	"zonecore/internal/infra/persistence/sqlite"
	"zonecore/pkg/domain"
)

// StorageDriver identifies a concrete snapshot storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// SnapshotStore re-exports the domain contract for callers wiring the engine.
type SnapshotStore = domain.SnapshotStore

// OpenSnapshotStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	ZONECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	ZONECORE_SQLITE_PATH: path to sqlite file (default ./zonecore.db)
//	ZONECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenSnapshotStore() (SnapshotStore, error) {
	driver := os.Getenv("ZONECORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := os.Getenv("ZONECORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case StoragePostgres:
		dsn := os.Getenv("ZONECORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
