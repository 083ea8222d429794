package data

import (
	"context"
	"errors"
	"fmt"
)

// IsQueueAvailable checks if an external message queue is available
func (d *Data) IsQueueAvailable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	if d.RabbitMQ.IsConnected() {
		return true
	}
	if d.Kafka.IsConnected() {
		return true
	}
	return false
}

// PublishToRabbitMQ publishes message to RabbitMQ
func (d *Data) PublishToRabbitMQ(exchange, routingKey string, body []byte) error {
	d.mu.RLock()
	closed := d.closed
	rmq := d.RabbitMQ
	d.mu.RUnlock()

	if closed {
		return errors.New("data layer is closed")
	}
	if !rmq.IsConnected() {
		return fmt.Errorf("rabbitmq connection is not active")
	}
	return rmq.PublishMessage(exchange, routingKey, body)
}

// PublishToKafka publishes message to Kafka
func (d *Data) PublishToKafka(ctx context.Context, topic string, key, value []byte) error {
	d.mu.RLock()
	closed := d.closed
	kfk := d.Kafka
	d.mu.RUnlock()

	if closed {
		return errors.New("data layer is closed")
	}
	if !kfk.IsConnected() {
		return fmt.Errorf("kafka connection is not active")
	}
	return kfk.PublishMessage(ctx, topic, key, value)
}

// ConsumeFromRabbitMQ registers a handler for the given queue
func (d *Data) ConsumeFromRabbitMQ(queue string, handler func([]byte) error) error {
	d.mu.RLock()
	closed := d.closed
	rmq := d.RabbitMQ
	d.mu.RUnlock()

	if closed {
		return errors.New("data layer is closed")
	}
	if !rmq.IsConnected() {
		return fmt.Errorf("rabbitmq connection is not active")
	}
	return rmq.ConsumeMessages(queue, handler)
}

// ConsumeFromKafka registers a handler for the given topic
func (d *Data) ConsumeFromKafka(ctx context.Context, topic, groupID string, handler func([]byte) error) error {
	d.mu.RLock()
	closed := d.closed
	kfk := d.Kafka
	d.mu.RUnlock()

	if closed {
		return errors.New("data layer is closed")
	}
	if !kfk.IsConnected() {
		return fmt.Errorf("kafka connection is not active")
	}
	return kfk.ConsumeMessages(ctx, topic, groupID, handler)
}
