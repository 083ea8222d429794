package data

import (
	"context"
	"fmt"
	"sync"
)

// DatabaseDriver defines the interface for relational database drivers.
// Following the design pattern of database/sql, drivers register themselves
// using init() functions and are looked up at runtime based on configuration.
type DatabaseDriver interface {
	// Name returns the driver identifier (e.g., "postgres", "mysql", "sqlite")
	Name() string

	// Connect establishes a new database connection using the provided configuration.
	// The returned connection should be ready for use or return an error.
	Connect(ctx context.Context, cfg any) (any, error)

	// Close terminates the database connection and releases resources.
	Close(conn any) error

	// Ping verifies the connection is alive and functional.
	Ping(ctx context.Context, conn any) error
}

var (
	databaseDrivers   = make(map[string]DatabaseDriver)
	databaseDriversMu sync.RWMutex
)

// RegisterDatabaseDriver makes a database driver available by the provided name.
// It is intended to be called from the init function in driver packages.
//
// Example usage in a driver package:
//
//	func init() {
//	    data.RegisterDatabaseDriver(&postgresDriver{})
//	}
//
// If RegisterDatabaseDriver is called twice with the same name or if driver is nil,
// it panics.
func RegisterDatabaseDriver(driver DatabaseDriver) {
	databaseDriversMu.Lock()
	defer databaseDriversMu.Unlock()

	if driver == nil {
		panic("data: RegisterDatabaseDriver driver is nil")
	}

	name := driver.Name()
	if name == "" {
		panic("data: RegisterDatabaseDriver driver name is empty")
	}

	if _, exists := databaseDrivers[name]; exists {
		panic(fmt.Sprintf("data: RegisterDatabaseDriver called twice for driver %s", name))
	}

	databaseDrivers[name] = driver
}

// GetDatabaseDriver retrieves a registered database driver by name.
// It returns an error with helpful instructions if the driver is not found.
func GetDatabaseDriver(name string) (DatabaseDriver, error) {
	databaseDriversMu.RLock()
	defer databaseDriversMu.RUnlock()

	driver, ok := databaseDrivers[name]
	if !ok {
		return nil, fmt.Errorf(
			"data: database driver %q not registered\n\n"+
				"Did you forget to import the driver package?\n"+
				"Add to your imports:\n"+
				"    _ \"github.com/ncobase/spacearc/data/%s\"\n\n"+
				"Available drivers: %v",
			name, name, listDatabaseDriversLocked(),
		)
	}

	return driver, nil
}

// ListDatabaseDrivers returns a snapshot of registered database drivers.
// Useful for debugging and diagnostics.
func ListDatabaseDrivers() []string {
	databaseDriversMu.RLock()
	defer databaseDriversMu.RUnlock()
	return listDatabaseDriversLocked()
}

// listDatabaseDriversLocked must be called with the lock held.
func listDatabaseDriversLocked() []string {
	names := make([]string, 0, len(databaseDrivers))
	for name := range databaseDrivers {
		names = append(names, name)
	}
	return names
}
