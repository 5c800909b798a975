package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	kafkaGo "github.com/segmentio/kafka-go"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// KafkaPublisher keeps one writer for all topics; the topic travels on each
// message.
type KafkaPublisher struct {
	w *kafkaGo.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.Hash{},
		RequiredAcks:           kafkaGo.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}}
}

func (k *KafkaPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return k.w.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

func (k *KafkaPublisher) Close() error { return k.w.Close() }

// LogPublisher stands in for a broker in local runs: events are only logged.
type LogPublisher struct{}

func (LogPublisher) PublishEvent(_ context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	log.Bg("messaging.publish", nil, map[string]any{"topic": topic, "key": key, "bytes": len(payload)})
	return nil
}

func (LogPublisher) Close() error { return nil }
