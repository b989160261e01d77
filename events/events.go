// Package events publishes a "sync completed" signal after each successful
// job so downstream consumers can recompute their aggregates.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Completed describes one finished sync run.
type Completed struct {
	RunID      string         `json:"run_id"`
	Job        string         `json:"job"`
	Key        string         `json:"key,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

// NewCompleted stamps a new run id and finish time.
func NewCompleted(job, key string, counts map[string]int) Completed {
	return Completed{
		RunID:      uuid.NewString(),
		Job:        job,
		Key:        key,
		Counts:     counts,
		FinishedAt: time.Now().UTC(),
	}
}

type Notifier interface {
	Publish(ctx context.Context, e Completed) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Completed) error { return nil }
func (Nop) Close() error                             { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes events as JSON, keyed by job name.
type KafkaNotifier struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, logger *zap.Logger) *KafkaNotifier {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &KafkaNotifier{writer: writer, logger: logger}
}

// New picks the Kafka notifier when brokers are configured.
func New(brokers []string, topic string, logger *zap.Logger) Notifier {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaNotifier(brokers, topic, logger)
}

func (n *KafkaNotifier) Publish(ctx context.Context, e Completed) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Job, err)
	}
	n.logger.Info("published sync event", zap.String("job", e.Job), zap.String("run_id", e.RunID))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func message(e Completed) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Job),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(e.RunID)},
		},
	}, nil
}
