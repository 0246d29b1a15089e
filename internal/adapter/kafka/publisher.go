// Package kafka publishes classified fire detections to the alert topic for
// alerting and export collaborators.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/emberline/firewatch-service/internal/domain"
)

// Publisher produces flat detection records to a Kafka topic. It implements
// pipeline.AlertPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alert topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes detections in a single
// WriteMessages call.
func (p *Publisher) PublishAlerts(ctx context.Context, detections []domain.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(detections))
	for i := range detections {
		msg, err := serializeToMessage(detections[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a detection's flat outbound record into a
// Kafka message keyed by its store id.
func serializeToMessage(d domain.Detection) (kafkago.Message, error) {
	data, err := json.Marshal(d.Flatten())
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize detection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%d", d.ID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(d.Source)},
			{Key: "detection_time", Value: []byte(d.DetectionTime.UTC().Format(time.RFC3339))},
		},
	}, nil
}
