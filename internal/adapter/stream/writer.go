// Package stream publishes alert lifecycle events to Kafka for downstream
// consumers (archival, notification fan-out). The publisher is optional; the
// service runs fully without it.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/quakewatch/eew-alert-service/internal/reconcile"
)

// Writer produces lifecycle events to a Kafka topic.
// It implements reconcile.EventPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAlertEvent serializes and publishes one lifecycle event. Keying by
// event identifier keeps each alert's history in one partition, in order.
func (w *Writer) PublishAlertEvent(ctx context.Context, ev reconcile.AlertEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlertEvent into a Kafka message.
func serializeToMessage(ev reconcile.AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.EventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "source", Value: []byte(ev.Source)},
			{Key: "at", Value: []byte(ev.At.Format(time.RFC3339))},
		},
	}, nil
}
