package config

import (
	"github.com/spf13/viper"
)

// Events configures the in-process lifecycle event bus
type Events struct {
	Store         string // memory or mongo
	MongoDatabase string
	Workers       int
	BufferSize    int
	Exchange      string // RabbitMQ exchange for mirrored events
	Topic         string // Kafka topic for mirrored events
}

// getEventsConfig returns events config
func getEventsConfig(v *viper.Viper) *Events {
	return &Events{
		Store:         getStringOrDefault(v, "events.store", "memory"),
		MongoDatabase: getStringOrDefault(v, "events.mongo_database", "spacearc"),
		Workers:       getIntOrDefault(v, "events.workers", 5),
		BufferSize:    getIntOrDefault(v, "events.buffer_size", 1000),
		Exchange:      getStringOrDefault(v, "events.exchange", "spacearc.events"),
		Topic:         getStringOrDefault(v, "events.topic", "spacearc-events"),
	}
}
