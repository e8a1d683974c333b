package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Producer publishes booking lifecycle events for the notification
// collaborator. Publishing is fire-and-forget: a broker failure is
// logged and never rolls back booking or ticket state.
type Producer struct {
	confirmed *kafka.Writer
	cancelled *kafka.Writer
	checkedIn *kafka.Writer
	enabled   bool
	logger    *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	if !cfg.Enabled {
		log.Warn("KAFKA", "Kafka publishing disabled, events will be dropped")
		return &Producer{enabled: false, logger: log}
	}
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.Brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		confirmed: newWriter(cfg.Topics.BookingConfirmed),
		cancelled: newWriter(cfg.Topics.BookingCancelled),
		checkedIn: newWriter(cfg.Topics.TicketCheckedIn),
		enabled:   true,
		logger:    log,
	}
}

func (p *Producer) publish(ctx context.Context, w *kafka.Writer, key string, payload any) {
	if !p.enabled {
		return
	}
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to marshal event for %s: %v", key, err))
		return
	}
	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", w.Topic, err))
		return
	}
	p.logger.LogKafka("publish", w.Topic, key)
}

func (p *Producer) PublishBookingConfirmed(ctx context.Context, event models.BookingConfirmedEvent) {
	p.publish(ctx, p.confirmed, event.BookingID, event)
}

func (p *Producer) PublishBookingCancelled(ctx context.Context, event models.BookingCancelledEvent) {
	p.publish(ctx, p.cancelled, event.BookingID, event)
}

func (p *Producer) PublishTicketCheckedIn(ctx context.Context, event models.TicketCheckedInEvent) {
	p.publish(ctx, p.checkedIn, event.TicketID, event)
}

func (p *Producer) Close() {
	if !p.enabled {
		return
	}
	for _, w := range []*kafka.Writer{p.confirmed, p.cancelled, p.checkedIn} {
		if err := w.Close(); err != nil {
			p.logger.Error("KAFKA", fmt.Sprintf("Failed to close writer for %s: %v", w.Topic, err))
		}
	}
}
