package event

import (
	"context"
	"fmt"

	"github.com/ncobase/spacearc/data"
	"github.com/ncobase/spacearc/logging/logger"
)

// Mirror copies events to an external broker so other systems can follow the
// archive queue. Delivery is best effort: a down broker never blocks the job
// pipeline, it only costs the mirrored copy.
type Mirror struct {
	d        *data.Data
	exchange string
	topic    string
	logger   *logger.Logger
}

// NewMirror publishes events to the RabbitMQ exchange or, failing that, the
// Kafka topic. Either name may be empty to skip that broker.
func NewMirror(d *data.Data, exchange, topic string, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.StdLogger()
	}
	return &Mirror{d: d, exchange: exchange, topic: topic, logger: log}
}

// publish is nil-safe so the bus can call it unconditionally.
func (m *Mirror) publish(ctx context.Context, event *Event) {
	if m == nil || m.d == nil || !m.d.IsQueueAvailable() {
		return
	}

	body, err := MarshalEvent(event)
	if err != nil {
		m.logger.Error(ctx, "failed to encode event for mirror", "error", err, "event_id", event.ID)
		return
	}
	routingKey := string(event.Type)

	if m.exchange != "" {
		err := m.d.PublishToRabbitMQ(m.exchange, routingKey, body)
		if err == nil {
			return
		}
		m.logger.Debug(ctx, "rabbitmq mirror publish failed", "error", err, "event_id", event.ID)
	}
	if m.topic != "" {
		err := m.d.PublishToKafka(ctx, m.topic, []byte(routingKey), body)
		if err == nil {
			return
		}
		m.logger.Debug(ctx, "kafka mirror publish failed", "error", err, "event_id", event.ID)
	}
	m.logger.Warn(ctx, "event mirror dropped", "event_id", event.ID,
		"detail", fmt.Sprintf("no broker accepted %s", event.Type))
}
