// Package kafka publishes persisted alerts as events for downstream consumers.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

type AlertEvent struct {
	EventID   string            `json:"event_id"`
	AlertID   int64             `json:"alert_id"`
	Message   string            `json:"message"`
	Missing   string            `json:"missing,omitempty"`
	Level     models.AlertLevel `json:"level"`
	Video     string            `json:"video,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	const op = "kafka.NewProducer"

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithProducer(producer, topic), nil
}

func NewWithProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
	}
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

// PublishAlert sends one event keyed by the alert id.
func (p *Producer) PublishAlert(_ context.Context, alert models.Alert) error {
	const op = "kafka.Producer.PublishAlert"

	payload, err := json.Marshal(AlertEvent{
		EventID:   uuid.NewString(),
		AlertID:   alert.ID,
		Message:   alert.Message,
		Missing:   alert.Missing,
		Level:     alert.Level,
		Video:     alert.Video,
		Timestamp: alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(alert.ID, 10)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
