package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestPublish_EncodesEventWithSource(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev events.Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Op != events.OpSaved || ev.Handle != "h-1" || ev.Owner != "user-1" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		if ev.Source != "replica-a" {
			return fmt.Errorf("source=%q", ev.Source)
		}
		return nil
	})

	p := NewPublisherWithProducer(sp, "dataset-events", "replica-a", nil)
	if err := p.Publish(context.Background(), events.New(events.OpSaved, "user-1", "h-1", mustTS())); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublish_ProducerFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(sp, "dataset-events", "", nil)
	err := p.Publish(context.Background(), events.New(events.OpDeleted, "user-1", "h-1", mustTS()))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err=%v want ErrOutOfBrokers", err)
	}
	_ = p.Close()
}

func TestPublish_InvalidEventNeverSent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewPublisherWithProducer(sp, "dataset-events", "", nil)
	if err := p.Publish(context.Background(), events.Event{Op: "bogus"}); err == nil {
		t.Fatal("expected validation error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, events.New(events.OpSaved, "u", "h", mustTS())); err == nil {
		t.Fatal("expected error for canceled context")
	}
	// no expectations were set, so any send would fail the mock on Close
	_ = p.Close()
}
