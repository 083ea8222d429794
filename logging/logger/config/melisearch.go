package config

import "github.com/spf13/viper"

// Meilisearch configures the optional searchable log index. Nil when the
// logger.meilisearch section is absent.
type Meilisearch struct {
	Host   string `json:"host" yaml:"host"`
	APIKey string `json:"api_key" yaml:"api_key"`
}

func getMeilisearchConfigs(v *viper.Viper) *Meilisearch {
	if !v.IsSet("logger.meilisearch") {
		return nil
	}
	return &Meilisearch{
		Host:   v.GetString("logger.meilisearch.host"),
		APIKey: v.GetString("logger.meilisearch.api_key"),
	}
}
