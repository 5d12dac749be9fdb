package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// Writer is the slice of kafka.Writer the host needs; tests swap in a
// capturing fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaHost publishes the transport's events as JSON envelopes onto
// three topics: inbound events, delivery events (ack/nack), statuses.
type KafkaHost struct {
	writer       Writer
	inboundTopic string
	eventTopic   string
	statusTopic  string
}

func NewKafkaHost(brokers []string, inboundTopic, eventTopic, statusTopic string) *KafkaHost {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Logger: kafka.LoggerFunc(func(msg string, args ...any) {
			slog.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			slog.Error(fmt.Sprintf(msg, args...))
		}),
	}
	return NewKafkaHostWithWriter(writer, inboundTopic, eventTopic, statusTopic)
}

func NewKafkaHostWithWriter(w Writer, inboundTopic, eventTopic, statusTopic string) *KafkaHost {
	return &KafkaHost{
		writer:       w,
		inboundTopic: inboundTopic,
		eventTopic:   eventTopic,
		statusTopic:  statusTopic,
	}
}

type deliveryEvent struct {
	EventType         string    `json:"event_type"`
	UserMessageID     string    `json:"user_message_id"`
	PlatformMessageID string    `json:"platform_message_id,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func (h *KafkaHost) PublishInbound(ctx context.Context, event model.InboundEvent) error {
	return h.publish(ctx, h.inboundTopic, event.FromAddr, event)
}

func (h *KafkaHost) PublishAck(ctx context.Context, userMessageID, platformMessageID string) error {
	return h.publish(ctx, h.eventTopic, userMessageID, deliveryEvent{
		EventType:         "ack",
		UserMessageID:     userMessageID,
		PlatformMessageID: platformMessageID,
		Timestamp:         time.Now().UTC(),
	})
}

func (h *KafkaHost) PublishNack(ctx context.Context, userMessageID, platformMessageID, reason string) error {
	return h.publish(ctx, h.eventTopic, userMessageID, deliveryEvent{
		EventType:         "nack",
		UserMessageID:     userMessageID,
		PlatformMessageID: platformMessageID,
		Reason:            reason,
		Timestamp:         time.Now().UTC(),
	})
}

func (h *KafkaHost) ReportStatus(ctx context.Context, status model.StatusEvent) error {
	return h.publish(ctx, h.statusTopic, status.Component, status)
}

func (h *KafkaHost) Close() error {
	return h.writer.Close()
}

func (h *KafkaHost) publish(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = h.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: b,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
