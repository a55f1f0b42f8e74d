package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/services"
)

func sampleNotification() services.Notification {
	return services.Notification{
		Type:        services.NotificationOrderPlaced,
		RecipientID: "cust-1",
		OrderID:     "ord-1",
		OrderNumber: "HT-2026-000001",
		Status:      domain.OrderStatusWaitingConfirmation,
		Title:       "Order placed",
		Message:     "Your order HT-2026-000001 has been placed.",
		OccurredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPubSubNotifierPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	notifier, err := NewPubSubNotifier(topic)
	if err != nil {
		t.Fatalf("NewPubSubNotifier: %v", err)
	}
	if err := notifier.Notify(ctx, sampleNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload Message
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderNumber != "HT-2026-000001" || payload.Status != "WAITING_CONFIRMATION" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["recipientId"]; attr != "cust-1" {
		t.Fatalf("expected recipient attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["type"]; attr != "order.placed" {
		t.Fatalf("expected type attribute, got %q", attr)
	}
}

func TestNewPubSubNotifierRequiresTopic(t *testing.T) {
	if _, err := NewPubSubNotifier(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
