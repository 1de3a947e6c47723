package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeCartMerged  = "cart.merged"
	TypeOrderPlaced = "order.placed"
)

// Event is the envelope written to the event stream.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New wraps payload in an envelope with a fresh id.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}

// Publisher sends domain events after the state change they describe has
// committed. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, key string, e Event) error
	Close() error
}

type CartMerged struct {
	UserID       uuid.UUID `json:"user_id"`
	TargetCartID uuid.UUID `json:"target_cart_id"`
	SourceCartID uuid.UUID `json:"source_cart_id"`
	Moved        int       `json:"moved"`
	Combined     int       `json:"combined"`
}

type OrderPlaced struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	Total       string    `json:"total"`
	Items       int       `json:"items"`
}

// LogPublisher writes events to the log; used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, key string, e Event) error {
	p.log.Info("event",
		zap.String("type", e.Type),
		zap.String("id", e.ID),
		zap.String("key", key),
		zap.ByteString("payload", e.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Emit builds and publishes an event, logging instead of returning failures.
func Emit(ctx context.Context, pub Publisher, log *zap.Logger, key, eventType string, payload any) {
	if pub == nil {
		return
	}
	e, err := New(eventType, payload)
	if err == nil {
		err = pub.Publish(ctx, key, e)
	}
	if err != nil && log != nil {
		log.Warn("failed to publish event", zap.String("type", eventType), zap.String("key", key), zap.Error(err))
	}
}
