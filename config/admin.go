package config

import (
	"github.com/spf13/viper"
)

// Admin configures the admin API. An empty token disables it.
type Admin struct {
	Token string
}

// getAdminConfig returns admin config
func getAdminConfig(v *viper.Viper) *Admin {
	return &Admin{
		Token: v.GetString("admin.token"),
	}
}
