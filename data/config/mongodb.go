package config

import (
	"github.com/spf13/viper"
)

// MongoDB mongodb config struct
type MongoDB struct {
	Master   *MongoNode `json:"master"`
	MaxRetry int        `json:"max_retry"`
}

// MongoNode mongodb node config
type MongoNode struct {
	URI     string `json:"uri"`
	Logging bool   `json:"logging"`
}

// getMongoDBConfigs reads MongoDB configurations
func getMongoDBConfigs(v *viper.Viper) *MongoDB {
	return &MongoDB{
		Master: &MongoNode{
			URI:     v.GetString("data.mongodb.master.uri"),
			Logging: v.GetBool("data.mongodb.master.logging"),
		},
		MaxRetry: v.GetInt("data.mongodb.max_retry"),
	}
}
