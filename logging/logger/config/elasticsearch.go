package config

import "github.com/spf13/viper"

// Elasticsearch configures the optional log shipping target. Nil when the
// logger.elasticsearch section is absent.
type Elasticsearch struct {
	Addresses []string `json:"addresses"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
}

func getElasticsearchConfigs(v *viper.Viper) *Elasticsearch {
	if !v.IsSet("logger.elasticsearch") {
		return nil
	}
	return &Elasticsearch{
		Addresses: v.GetStringSlice("logger.elasticsearch.addresses"),
		Username:  v.GetString("logger.elasticsearch.username"),
		Password:  v.GetString("logger.elasticsearch.password"),
	}
}
