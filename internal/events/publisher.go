package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeCartItemAdded    = "cart_item_added"
	TypeCartItemUpdated  = "cart_item_updated"
	TypeCartItemRemoved  = "cart_item_removed"
	TypeCartCleared      = "cart_cleared"
	TypeFavoriteToggled  = "favorite_toggled"
	TypeSessionSignedIn  = "session_signed_in"
	TypeSessionSignedOut = "session_signed_out"
)

// Activity is the payload published for a confirmed storefront mutation.
type Activity struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	ProductID int64     `json:"product_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Mode      string    `json:"mode"`
	At        time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits activity events to Kafka, best-effort: a broker outage is
// logged and never propagated to the operation that produced the event. A
// nil Publisher is a no-op, so wiring it stays optional.
type Publisher struct {
	writer    messageWriter
	sessionID string
}

func NewPublisher(sessionID string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "storefront-activity",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, sessionID: sessionID}
}

func (p *Publisher) Publish(activity Activity) {
	if p == nil {
		return
	}
	activity.SessionID = p.sessionID
	if activity.At.IsZero() {
		activity.At = time.Now()
	}

	payload, err := json.Marshal(activity)
	if err != nil {
		log.Printf("marshal activity event failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%s", p.sessionID, activity.Type)),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("publish activity event %s failed: %v", activity.Type, err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		log.Printf("close activity publisher failed: %v", err)
	}
}
