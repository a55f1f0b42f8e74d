package services

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/hometech/api/internal/domain"
)

var vndPrinter = message.NewPrinter(language.Vietnamese)

// FormatMoney renders an amount with Vietnamese digit grouping, e.g. "1.500.000 ₫".
func FormatMoney(amount int64, currency string) string {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "", "VND":
		return vndPrinter.Sprintf("%d ₫", amount)
	default:
		return vndPrinter.Sprintf("%d %s", amount, strings.ToUpper(currency))
	}
}

// orderPlacedNotification confirms a new order to its customer.
func orderPlacedNotification(order domain.Order, currency string, at time.Time) Notification {
	return Notification{
		Type:        NotificationOrderPlaced,
		RecipientID: order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Title:       "Order placed",
		Message: fmt.Sprintf("Your order %s has been placed. Total: %s. Delivery to %s.",
			order.OrderNumber, FormatMoney(order.TotalAmount, currency), order.DeliveryAddress.FullAddress()),
		OccurredAt: at,
	}
}

// newOrderNotification alerts one admin about a new order.
func newOrderNotification(order domain.Order, adminID string, customerName string, currency string, at time.Time) Notification {
	if strings.TrimSpace(customerName) == "" {
		customerName = order.DeliveryAddress.RecipientName
	}
	return Notification{
		Type:        NotificationOrderNew,
		RecipientID: adminID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Title:       "New order",
		Message: fmt.Sprintf("New order %s from %s: %d item(s), total %s.",
			order.OrderNumber, customerName, len(order.Items), FormatMoney(order.TotalAmount, currency)),
		OccurredAt: at,
	}
}

// statusNotification tells the customer their order moved to a new status.
func statusNotification(order domain.Order, at time.Time) Notification {
	n := Notification{
		Type:        NotificationStatusChanged,
		RecipientID: order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		OccurredAt:  at,
	}
	switch order.Status {
	case domain.OrderStatusConfirmed:
		n.Title = "Order confirmed"
		n.Message = fmt.Sprintf("Your order %s has been confirmed and is being prepared.", order.OrderNumber)
	case domain.OrderStatusShipped:
		n.Title = "Order shipped"
		n.Message = fmt.Sprintf("Your order %s is on its way to %s.", order.OrderNumber, order.DeliveryAddress.FullAddress())
	case domain.OrderStatusCompleted:
		n.Title = "Order completed"
		n.Message = fmt.Sprintf("Your order %s has been delivered. Thank you for shopping with HomeTech.", order.OrderNumber)
	case domain.OrderStatusCancelled:
		return cancelledNotification(order, at)
	default:
		n.Title = "Order updated"
		n.Message = fmt.Sprintf("Your order %s is now %s.", order.OrderNumber, order.Status)
	}
	return n
}

func cancelledNotification(order domain.Order, at time.Time) Notification {
	msg := fmt.Sprintf("Your order %s was cancelled by the shop.", order.OrderNumber)
	if order.CancelledBy != nil && *order.CancelledBy == string(domain.UserRoleCustomer) {
		msg = fmt.Sprintf("You cancelled order %s.", order.OrderNumber)
	}
	return Notification{
		Type:        NotificationOrderCancelled,
		RecipientID: order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Title:       "Order cancelled",
		Message:     msg,
		OccurredAt:  at,
	}
}
