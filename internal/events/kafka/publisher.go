// Package kafka publishes and consumes dataset change events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events"
)

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	log      *slog.Logger
}

func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	cfg = cfg.withDefaults()

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return NewPublisherWithProducer(p, cfg.Topic, cfg.Source, log), nil
}

func NewPublisherWithProducer(p sarama.SyncProducer, topic, source string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{producer: p, topic: topic, source: source, log: log}
}

// Publish sends ev keyed by handle, so events for one dataset stay ordered
// within a partition.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) (err error) {
	defer func() { observability.ObserveEvent("publish", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Source == "" {
		ev.Source = p.source
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	part, off, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(ev.Handle),
		Value:     sarama.ByteEncoder(b),
		Timestamp: ev.TS,
	})
	if err != nil {
		return fmt.Errorf("send to %s: %w", p.topic, err)
	}
	p.log.Debug("dataset event published", "op", ev.Op, "handle", ev.Handle, "partition", part, "offset", off)
	return nil
}

func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close producer: %w", err)
	}
	return nil
}
