package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// encode keys the message by source benefit so events for one record stay
// ordered within a partition.
func encode(event domain.TransferCompleted) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.FromID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("transfer_completed")},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.TransferCompleted) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
