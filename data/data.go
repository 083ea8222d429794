// Package data wires database, cache, and message broker connections into a
// single layer the rest of the service depends on.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ncobase/spacearc/data/config"
	"github.com/ncobase/spacearc/data/connection"
	"github.com/ncobase/spacearc/data/messaging/kafka"
	"github.com/ncobase/spacearc/data/messaging/rabbitmq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type ContextKey string

const (
	ContextKeyTransaction ContextKey = "tx"
)

// Data represents the data layer implementation
type Data struct {
	Conn     *connection.Connections
	RabbitMQ *rabbitmq.RabbitMQ
	Kafka    *kafka.Kafka

	mu     sync.RWMutex
	closed bool
}

// New creates a new data layer from configuration. The returned cleanup
// closes every connection that was opened.
func New(cfg *config.Config) (*Data, func(), error) {
	conn, err := connection.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	d := &Data{
		Conn:     conn,
		RabbitMQ: rabbitmq.NewRabbitMQ(conn.RMQ),
		Kafka:    kafka.New(conn.KFK),
	}

	cleanup := func() {
		if errs := d.Close(); len(errs) > 0 {
			fmt.Printf("data cleanup errors: %v\n", errs)
		}
	}

	return d, cleanup, nil
}

// GetDB returns the database connection
func (d *Data) GetDB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || d.Conn == nil {
		return nil
	}
	return d.Conn.DB()
}

// GetRedis returns the Redis client
func (d *Data) GetRedis() *redis.Client {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || d.Conn == nil {
		return nil
	}
	return d.Conn.RC
}

// GetMongoDatabase retrieves a specific MongoDB database
func (d *Data) GetMongoDatabase(name string) *mongo.Database {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || d.Conn == nil {
		return nil
	}
	return d.Conn.GetMongoDatabase(name)
}

// Ping verifies the database connection
func (d *Data) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return errors.New("data layer is closed")
	}
	if d.Conn == nil {
		return errors.New("no connections available")
	}
	return d.Conn.Ping(ctx)
}

// Close closes all data connections
func (d *Data) Close() []error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	var errs []error

	if d.RabbitMQ != nil {
		if err := d.RabbitMQ.Close(); err != nil {
			errs = append(errs, err)
		}
		d.RabbitMQ = nil
	}

	if d.Kafka != nil {
		if err := d.Kafka.Close(); err != nil {
			errs = append(errs, err)
		}
		d.Kafka = nil
	}

	if d.Conn != nil {
		errs = append(errs, d.Conn.Close()...)
		d.Conn = nil
	}

	d.closed = true
	return errs
}
