package data

import "github.com/ncobase/spacearc/data/connection"

// dataRegistry implements connection.DriverRegistry interface.
// This allows the connection package to use drivers without import cycle.
type dataRegistry struct{}

func (r *dataRegistry) GetDatabaseDriver(name string) (connection.DatabaseDriver, error) {
	driver, err := GetDatabaseDriver(name)
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// init sets up the driver registry for the connection package.
func init() {
	connection.SetDriverRegistry(&dataRegistry{})
}
