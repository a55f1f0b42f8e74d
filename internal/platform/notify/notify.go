// Package notify delivers order notifications over Pub/Sub, NATS or the structured log.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hometech/api/internal/services"
)

// Message is the JSON payload published for each notification.
type Message struct {
	Type        string    `json:"type"`
	RecipientID string    `json:"recipientId"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Status      string    `json:"status,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func newMessage(n services.Notification) Message {
	return Message{
		Type:        string(n.Type),
		RecipientID: n.RecipientID,
		OrderID:     n.OrderID,
		OrderNumber: n.OrderNumber,
		Status:      string(n.Status),
		Title:       n.Title,
		Message:     n.Message,
		OccurredAt:  n.OccurredAt.UTC(),
	}
}

func encode(n services.Notification) ([]byte, error) {
	data, err := json.Marshal(newMessage(n))
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return data, nil
}

// attributes carries routing metadata that subscribers can filter on without decoding the body.
func attributes(n services.Notification) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "type", string(n.Type))
	setAttr(attrs, "recipientId", n.RecipientID)
	setAttr(attrs, "orderId", n.OrderID)
	setAttr(attrs, "orderNumber", n.OrderNumber)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

// Instrumented counts deliveries per transport and outcome.
type Instrumented struct {
	next      services.Notifier
	transport string
	counter   metric.Int64Counter
}

// NewInstrumented wraps next with a "notifications.delivered" counter.
func NewInstrumented(next services.Notifier, transport string, meter metric.Meter) (*Instrumented, error) {
	if next == nil {
		return nil, fmt.Errorf("notify: next notifier is required")
	}
	counter, err := meter.Int64Counter("notifications.delivered",
		metric.WithDescription("Order notifications handed to the delivery transport"),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: create counter: %w", err)
	}
	return &Instrumented{next: next, transport: transport, counter: counter}, nil
}

// Notify implements services.Notifier.
func (i *Instrumented) Notify(ctx context.Context, n services.Notification) error {
	err := i.next.Notify(ctx, n)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport", i.transport),
		attribute.String("type", string(n.Type)),
		attribute.String("outcome", outcome),
	))
	return err
}
