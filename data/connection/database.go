package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ncobase/spacearc/data/config"
)

// driverRegistry provides access to the driver registration without import cycle.
// This is set by the parent data package during initialization.
var driverRegistry DriverRegistry

// DriverRegistry defines the minimal interface needed from data package.
type DriverRegistry interface {
	GetDatabaseDriver(name string) (DatabaseDriver, error)
}

// DatabaseDriver mirrors the interface from data package to avoid import cycle.
type DatabaseDriver interface {
	Name() string
	Connect(ctx context.Context, cfg any) (any, error)
	Close(conn any) error
	Ping(ctx context.Context, conn any) error
}

// SetDriverRegistry is called by the data package to inject the registry.
func SetDriverRegistry(registry DriverRegistry) {
	driverRegistry = registry
}

// newDBClient connects to the configured master database node.
func newDBClient(conf *config.DBNode) (*sql.DB, error) {
	if driverRegistry == nil {
		return nil, fmt.Errorf("driver registry not initialized, ensure drivers are imported")
	}

	driver, err := driverRegistry.GetDatabaseDriver(conf.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to get database driver: %w", err)
	}

	conn, err := driver.Connect(context.Background(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to connect using %s driver: %w", conf.Driver, err)
	}

	db, ok := conn.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("driver %s returned invalid connection type, expected *sql.DB", conf.Driver)
	}

	return db, nil
}
