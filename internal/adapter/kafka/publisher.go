package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-alert-service/internal/config"
	"github.com/couchcryptid/river-alert-service/internal/cycle"
	"github.com/couchcryptid/river-alert-service/internal/domain"
)

const (
	eventTypeObservation = "observation_applied"
	eventTypeSummary     = "cycle_summary"
)

// Publisher produces fetch-cycle events to a Kafka topic.
// It implements cycle.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// observationEvent is the wire form of an applied observation.
type observationEvent struct {
	CycleID   string  `json:"cycle_id"`
	StationID string  `json:"station_id"`
	Station   string  `json:"station"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
	Level     string  `json:"level"`
}

// PublishObservation emits one event for a conditional write that advanced a
// station record.
func (p *Publisher) PublishObservation(ctx context.Context, cycleID string, obs domain.Observation) error {
	event := observationEvent{
		CycleID:   cycleID,
		StationID: obs.StationID,
		Station:   obs.Name,
		Timestamp: obs.Timestamp,
		Value:     obs.Value,
		Level:     domain.Classify(obs.Value, obs.Thresholds).String(),
	}
	msg, err := serializeEvent(eventTypeObservation, obs.Name, cycleID, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// PublishSummary emits the folded outcome of a completed cycle.
func (p *Publisher) PublishSummary(ctx context.Context, summary cycle.Summary) error {
	msg, err := serializeEvent(eventTypeSummary, summary.CycleID, summary.CycleID, summary)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeEvent marshals a payload into a keyed Kafka message with the
// event_type and cycle_id headers consumers route on.
func serializeEvent(eventType, key, cycleID string, payload any) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", eventType, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "cycle_id", Value: []byte(cycleID)},
		},
	}, nil
}
