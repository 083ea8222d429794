package data

import (
	"context"
	"time"
)

// Health checks all configured components
func (d *Data) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"timestamp": time.Now(),
		"services":  make(map[string]any),
	}

	services := health["services"].(map[string]any)
	overallHealthy := true

	if healthy := d.checkDatabaseHealth(ctx, services); !healthy {
		overallHealthy = false
	}

	if healthy := d.checkRedisHealth(ctx, services); !healthy {
		overallHealthy = false
	}

	if healthy := d.checkMongoHealth(ctx, services); !healthy {
		overallHealthy = false
	}

	if healthy := d.checkMessagingHealth(services); !healthy {
		overallHealthy = false
	}

	if overallHealthy {
		health["status"] = "healthy"
	} else {
		health["status"] = "degraded"
	}

	return health
}

// checkDatabaseHealth checks database health
func (d *Data) checkDatabaseHealth(ctx context.Context, services map[string]any) bool {
	if d.GetDB() == nil {
		return true // No database configured
	}

	start := time.Now()
	err := d.Conn.Ping(ctx)
	duration := time.Since(start)

	healthy := err == nil
	services["database"] = map[string]any{
		"healthy":     healthy,
		"response_ms": duration.Milliseconds(),
		"error":       getErrorString(err),
	}

	return healthy
}

// checkRedisHealth checks Redis health
func (d *Data) checkRedisHealth(ctx context.Context, services map[string]any) bool {
	rc := d.GetRedis()
	if rc == nil {
		return true // No Redis configured
	}

	start := time.Now()
	err := rc.Ping(ctx).Err()
	duration := time.Since(start)

	healthy := err == nil
	services["redis"] = map[string]any{
		"healthy":     healthy,
		"response_ms": duration.Milliseconds(),
		"error":       getErrorString(err),
	}

	return healthy
}

// checkMongoHealth checks MongoDB health
func (d *Data) checkMongoHealth(ctx context.Context, services map[string]any) bool {
	d.mu.RLock()
	conn := d.Conn
	d.mu.RUnlock()

	if conn == nil || conn.MG == nil {
		return true // No MongoDB configured
	}

	start := time.Now()
	err := conn.MG.Ping(ctx, nil)
	duration := time.Since(start)

	healthy := err == nil
	services["mongodb"] = map[string]any{
		"healthy":     healthy,
		"response_ms": duration.Milliseconds(),
		"error":       getErrorString(err),
	}

	return healthy
}

// checkMessagingHealth checks broker health
func (d *Data) checkMessagingHealth(services map[string]any) bool {
	healthy := true

	d.mu.RLock()
	rmq := d.RabbitMQ
	kfk := d.Kafka
	conn := d.Conn
	d.mu.RUnlock()

	if conn != nil && conn.RMQ != nil {
		connected := rmq.IsConnected()
		services["rabbitmq"] = map[string]any{"healthy": connected}
		if !connected {
			healthy = false
		}
	}

	if conn != nil && conn.KFK != nil {
		connected := kfk.IsConnected()
		services["kafka"] = map[string]any{"healthy": connected}
		if !connected {
			healthy = false
		}
	}

	return healthy
}

func getErrorString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
