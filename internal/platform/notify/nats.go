package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/hometech/api/internal/services"
)

// natsPublisher is the subset of *nats.Conn used for publishing.
type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSNotifier publishes notifications on "<subject>.<type>", e.g. "hometech.orders.notifications.order.placed".
type NATSNotifier struct {
	conn    natsPublisher
	subject string
}

// NewNATSNotifier constructs a NATS backed notifier. conn is usually a *nats.Conn.
func NewNATSNotifier(conn natsPublisher, subject string) (*NATSNotifier, error) {
	if conn == nil {
		return nil, errors.New("nats notifier: connection is required")
	}
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		return nil, errors.New("nats notifier: subject is required")
	}
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// Notify publishes the notification. Core NATS is fire-and-forget, so a nil error means the
// message reached the client buffer.
func (p *NATSNotifier) Notify(ctx context.Context, n services.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(n)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.subjectFor(n))
	msg.Data = data
	for key, value := range attributes(n) {
		msg.Header.Set(key, value)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish notification on %s: %w", msg.Subject, err)
	}
	return nil
}

func (p *NATSNotifier) subjectFor(n services.Notification) string {
	kind := strings.TrimSpace(string(n.Type))
	if kind == "" {
		return p.subject
	}
	return p.subject + "." + kind
}
