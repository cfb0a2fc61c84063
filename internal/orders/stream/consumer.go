package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
)

const streamConsumerName = "orders-stream"

type nudger interface {
	Nudge(ctx context.Context, buyerID uuid.UUID)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns published order events into broker nudges so every API
// instance refreshes its subscribers, not only the one that committed
// the change.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	broker       nudger
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a stream consumer for the orders subscription.
func NewConsumer(subscription *gcppubsub.Subscriber, broker nudger, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("orders subscription required")
	}
	if broker == nil {
		return nil, errors.New("broker required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: subscription,
		broker:       broker,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run consumes order events until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process returns true when the message should be nacked.
func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) bool {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		c.logg.Warn(logCtx, "unknown event type")
		return false
	}

	buyerID, eventID, err := decodeNudge(eventType, msg.Data)
	if err != nil {
		fields["error"] = err.Error()
		c.logg.Warn(c.logg.WithFields(ctx, fields), "invalid order event payload")
		return false
	}
	if buyerID == uuid.Nil {
		// Cart and user events carry no order-feed impact.
		return false
	}

	fields["event_id"] = eventID.String()
	fields["event_type"] = eventType
	logCtx = c.logg.WithFields(ctx, fields)

	already, err := c.manager.CheckAndMarkProcessed(logCtx, streamConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	c.broker.Nudge(logCtx, buyerID)
	c.logg.Info(logCtx, "order feed refreshed")
	return false
}

// decodeNudge extracts the affected buyer from the stored envelope.
// Non-order events return a nil buyer and are skipped.
func decodeNudge(eventType enums.OutboxEventType, data []byte) (uuid.UUID, uuid.UUID, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	switch eventType {
	case enums.EventOrderCreated, enums.EventOrderStateChanged:
	default:
		return uuid.Nil, eventID, nil
	}

	var payload struct {
		BuyerID uuid.UUID `json:"buyer_id"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if payload.BuyerID == uuid.Nil {
		return uuid.Nil, uuid.Nil, errors.New("buyer_id missing")
	}
	return payload.BuyerID, eventID, nil
}
