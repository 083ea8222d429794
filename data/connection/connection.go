// Package connection establishes and owns the raw client connections used by
// the data layer.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/ncobase/spacearc/data/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Connections struct to hold all database connections and clients
type Connections struct {
	DBC    *sql.DB
	RC     *redis.Client
	MG     *mongo.Client
	RMQ    *amqp.Connection
	KFK    *kafka.Conn
	closed bool
	mu     sync.Mutex
}

// New creates a new Connections
func New(conf *config.Config) (*Connections, error) {
	c := &Connections{}
	var err error

	if conf.Database != nil && conf.Database.Master != nil && conf.Database.Master.Source != "" {
		c.DBC, err = newDBClient(conf.Database.Master)
		if err != nil {
			return nil, err
		}
	}

	if conf.Redis != nil && conf.Redis.Addr != "" {
		c.RC, err = newRedisClient(conf.Redis)
		if err != nil {
			return nil, err
		}
	}

	if conf.MongoDB != nil && conf.MongoDB.Master != nil && conf.MongoDB.Master.URI != "" {
		c.MG, err = newMongoClient(conf.MongoDB.Master)
		if err != nil {
			return nil, err
		}
	}

	if conf.RabbitMQ != nil && conf.RabbitMQ.URL != "" {
		c.RMQ, err = newRabbitMQConnection(conf.RabbitMQ)
		if err != nil {
			return nil, err
		}
	}

	if conf.Kafka != nil && len(conf.Kafka.Brokers) > 0 {
		c.KFK, err = newKafkaConnection(conf.Kafka)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Close closes all data connections
func (d *Connections) Close() (errs []error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	// Close Redis client if connected
	if d.RC != nil {
		if err := d.pingRedis(context.Background()); err == nil {
			if err := d.RC.Close(); err != nil {
				errs = append(errs, errors.New("redis close error: "+err.Error()))
			}
		}
		d.RC = nil
	}

	// Close database connection if connected
	if d.DBC != nil {
		if err := d.DBC.Close(); err != nil {
			errs = append(errs, errors.New("database close error: "+err.Error()))
		}
		d.DBC = nil
	}

	// Disconnect MongoDB client if connected
	if d.MG != nil {
		if err := d.MG.Ping(context.Background(), nil); err == nil {
			if err := d.MG.Disconnect(context.Background()); err != nil {
				errs = append(errs, errors.New("mongodb close error: "+err.Error()))
			}
		}
		d.MG = nil
	}

	// Close RabbitMQ client if connected
	if d.RMQ != nil {
		if !d.RMQ.IsClosed() {
			if err := d.RMQ.Close(); err != nil {
				errs = append(errs, errors.New("rabbitmq close error: "+err.Error()))
			}
		}
		d.RMQ = nil
	}

	// Close Kafka client if connected
	if d.KFK != nil {
		if err := d.pingKafka(); err == nil {
			if err := d.KFK.Close(); err != nil {
				errs = append(errs, errors.New("kafka close error: "+err.Error()))
			}
		}
		d.KFK = nil
	}

	d.closed = true

	return errs
}

// Ping checks the master database connection
func (d *Connections) Ping(ctx context.Context) error {
	if d.DBC != nil {
		return d.DBC.PingContext(ctx)
	}
	return nil
}

// DB returns the database connection
func (d *Connections) DB() *sql.DB {
	return d.DBC
}

// GetMongoDatabase retrieves a specific MongoDB database
func (d *Connections) GetMongoDatabase(databaseName string) *mongo.Database {
	if d.MG == nil {
		return nil
	}
	return d.MG.Database(databaseName)
}

// pingRedis checks if Redis connection is alive
func (d *Connections) pingRedis(ctx context.Context) error {
	if d.RC == nil {
		return errors.New("redis client is nil")
	}
	return d.RC.Ping(ctx).Err()
}

// pingKafka checks if Kafka connection is alive
func (d *Connections) pingKafka() error {
	if d.KFK == nil {
		return errors.New("kafka connection is nil")
	}

	// Try to read connection properties as a connection check
	_, err := d.KFK.Controller()
	return err
}
