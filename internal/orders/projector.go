package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventStore interface {
	Insert(ctx context.Context, ev PlacedEvent) error
}

const (
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// Projector consumes order_placed events and stores them, so the Kafka sink
// ends up in the same orders table as the direct Postgres sink. An offset is
// committed only once its event is stored, recognised as a duplicate, or
// known to be unusable.
type Projector struct {
	store      EventStore
	reader     MessageReader
	log        *logger.Logger
	retryDelay time.Duration
}

func NewProjector(store EventStore, topic, groupID string, log *logger.Logger, brokers ...string) *Projector {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Projector{store: store, reader: reader, log: log, retryDelay: retryBaseDelay}
}

func NewProjectorWithReader(store EventStore, reader MessageReader, log *logger.Logger) *Projector {
	return &Projector{store: store, reader: reader, log: log, retryDelay: retryBaseDelay}
}

func (p *Projector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.processMessage(ctx)
	}
}

func (p *Projector) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing kafka reader", "error", err)
	}
}

func (p *Projector) processMessage(ctx context.Context) {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.log.Error("error fetching message", "error", err)
		return
	}

	if !p.handle(ctx, m) {
		return
	}
	if err := p.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error("error committing offset", "offset", m.Offset, "error", err)
	}
}

// handle reports whether the message is done with and its offset may be
// committed. It returns false only when ctx ends before the event is stored.
func (p *Projector) handle(ctx context.Context, m kafka.Message) bool {
	if t := eventType(m); t != "" && t != EventOrderPlaced {
		p.log.Debug("skipping event", "event_type", t)
		return true
	}

	var ev PlacedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.log.Error("error parsing message", "error", err, "offset", m.Offset)
		return true
	}
	if ev.OrderNumber == "" {
		p.log.Warn("order event without order number", "offset", m.Offset)
		return true
	}
	if ev.Currency == "" {
		ev.Currency = "USD"
	}

	delay := p.retryDelay
	for {
		err := p.store.Insert(ctx, ev)
		switch {
		case err == nil:
			p.log.Info("order recorded", "order_number", ev.OrderNumber)
			return true
		case errors.Is(err, ErrDuplicateOrder):
			p.log.Info("order already recorded, skipping", "order_number", ev.OrderNumber)
			return true
		}
		p.log.Error("failed to record order, retrying", "order_number", ev.OrderNumber, "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, retryMaxDelay)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
