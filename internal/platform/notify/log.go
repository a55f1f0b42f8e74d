package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hometech/api/internal/services"
)

// LogNotifier writes notifications to the structured log. It is the local development transport.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements services.Notifier.
func (l *LogNotifier) Notify(_ context.Context, n services.Notification) error {
	l.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipientId", n.RecipientID),
		zap.String("orderId", n.OrderID),
		zap.String("orderNumber", n.OrderNumber),
		zap.String("status", string(n.Status)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.Time("occurredAt", n.OccurredAt),
	)
	return nil
}
