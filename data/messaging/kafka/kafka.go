// Package kafka wraps a Kafka connection with publish/consume helpers.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ncobase/spacearc/logging/logger"
	"github.com/segmentio/kafka-go"
)

const (
	publishTimeout  = 30 * time.Second
	retryAttempts   = 3
	retryBackoffMax = 30 * time.Second
)

// Kafka represents Kafka implementation
type Kafka struct {
	conn      *kafka.Conn
	brokers   []string
	mu        sync.Mutex
	writer    *kafka.Writer
	readers   map[string]*kafka.Reader
	readersMu sync.RWMutex
}

// New creates new Kafka service
func New(conn *kafka.Conn) *Kafka {
	if conn == nil {
		return nil
	}

	var brokers []string
	remoteBroker := conn.RemoteAddr().String()
	if remoteBroker != "" {
		brokers = []string{remoteBroker}
	}

	return &Kafka{
		conn:    conn,
		brokers: brokers,
		readers: make(map[string]*kafka.Reader),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(remoteBroker),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

// IsConnected checks if the Kafka connection is valid
func (s *Kafka) IsConnected() bool {
	if s == nil || s.conn == nil {
		return false
	}

	_, err := s.conn.Controller()
	return err == nil
}

// PublishMessage publishes message to Kafka
func (s *Kafka) PublishMessage(ctx context.Context, topic string, key, value []byte) error {
	if !s.IsConnected() {
		return fmt.Errorf("kafka connection is not available")
	}

	writer := s.getWriter()
	if writer == nil {
		return errors.New("kafka writer is not initialized")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}

	backoff := 100 * time.Millisecond

	for attempt := 0; attempt <= retryAttempts; attempt++ {
		err := writer.WriteMessages(timeoutCtx, msg)
		if err == nil {
			return nil
		}

		if timeoutCtx.Err() != nil {
			return fmt.Errorf("publish context timeout: %w", timeoutCtx.Err())
		}

		if attempt < retryAttempts {
			time.Sleep(backoff)
			backoff *= 2
			if backoff > retryBackoffMax {
				backoff = retryBackoffMax
			}
		}
	}

	return fmt.Errorf("failed to write message after %d attempts", retryAttempts+1)
}

// getWriter ensures a valid writer exists and returns it
func (s *Kafka) getWriter() *kafka.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil && len(s.brokers) > 0 {
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(s.brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		}
	}

	return s.writer
}

// ConsumeMessages consumes messages from Kafka
func (s *Kafka) ConsumeMessages(ctx context.Context, topic string, groupID string, handler func([]byte) error) error {
	if !s.IsConnected() {
		return fmt.Errorf("kafka connection is not available")
	}

	reader := s.getReader(topic, groupID)
	if reader == nil {
		return errors.New("failed to create Kafka reader")
	}

	go func() {
		log := logger.StdLogger()

		defer func() {
			if r := recover(); r != nil {
				log.Error(ctx, "recovered from panic in kafka consumer", "topic", topic, "panic", fmt.Sprint(r))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				s.closeReader(topic, groupID)
				return
			default:
			}

			readCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			m, err := reader.FetchMessage(readCtx)
			cancel()

			if err != nil {
				if err == io.EOF || errors.Is(err, context.Canceled) {
					// Reader closed or context canceled
					return
				}

				if !errors.Is(err, context.DeadlineExceeded) {
					log.Error(ctx, "error reading kafka message", "topic", topic, "error", err.Error())
					time.Sleep(1 * time.Second)
				}
				continue
			}

			if err := handler(m.Value); err != nil {
				log.Error(ctx, "error processing kafka message", "topic", topic, "error", err.Error())
				// Continue without committing - message will be redelivered
				continue
			}

			commitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := reader.CommitMessages(commitCtx, m); err != nil {
				log.Error(ctx, "failed to commit kafka message", "topic", topic, "error", err.Error())
			}
			cancel()
		}
	}()

	return nil
}

// getReader gets or creates a reader for the specified topic
func (s *Kafka) getReader(topic, groupID string) *kafka.Reader {
	key := topic + ":" + groupID

	s.readersMu.RLock()
	reader, exists := s.readers[key]
	s.readersMu.RUnlock()

	if exists && reader != nil {
		return reader
	}

	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	if reader, exists = s.readers[key]; exists && reader != nil {
		return reader
	}

	reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:         s.brokers,
		GroupID:         groupID,
		Topic:           topic,
		MinBytes:        10e3,
		MaxBytes:        10e6,
		MaxWait:         500 * time.Millisecond,
		StartOffset:     kafka.LastOffset,
		CommitInterval:  1 * time.Second,
		ReadLagInterval: -1,
		ReadBackoffMin:  100 * time.Millisecond,
		ReadBackoffMax:  5 * time.Second,
	})

	s.readers[key] = reader
	return reader
}

// closeReader safely closes a reader and removes it from the map
func (s *Kafka) closeReader(topic, groupID string) {
	key := topic + ":" + groupID

	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	if reader, exists := s.readers[key]; exists && reader != nil {
		_ = reader.Close()
		delete(s.readers, key)
	}
}

// Close closes the Kafka service
func (s *Kafka) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka writer: %w", err))
		}
		s.writer = nil
	}

	s.readersMu.Lock()
	for key, reader := range s.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka reader %s: %w", key, err))
		}
		delete(s.readers, key)
	}
	s.readersMu.Unlock()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka connection: %w", err))
		}
		s.conn = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing Kafka service: %v", errs)
	}

	return nil
}
