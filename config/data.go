package config

import (
	dc "github.com/ncobase/spacearc/data/config"

	"github.com/spf13/viper"
)

// Data represents the data configuration
type Data = dc.Config

// DBNode represents a database node
type DBNode = dc.DBNode

// getDataConfig returns data config
func getDataConfig(v *viper.Viper) *Data {
	return dc.GetConfig(v)
}
