package config

import (
	"github.com/spf13/viper"
)

// Config data config struct
type Config struct {
	*Database `yaml:"database" json:"database"`
	*Redis    `yaml:"redis" json:"redis"`
	*MongoDB  `yaml:"mongodb" json:"mongodb"`
	*RabbitMQ `yaml:"rabbitmq" json:"rabbitmq"`
	*Kafka    `yaml:"kafka" json:"kafka"`
}

// GetConfig returns data config
func GetConfig(v *viper.Viper) *Config {
	return &Config{
		Database: getDatabaseConfig(v),
		Redis:    getRedisConfigs(v),
		MongoDB:  getMongoDBConfigs(v),
		RabbitMQ: getRabbitMQConfigs(v),
		Kafka:    getKafkaConfigs(v),
	}
}
