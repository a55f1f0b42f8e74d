package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/payments"
	"github.com/hometech/api/internal/repositories"
)

// PaymentGateway abstracts payments.Manager for easier testing.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, method string, req payments.CheckoutRequest) (payments.CheckoutSession, error)
	VerifyReturn(ctx context.Context, method string, params map[string]string) (payments.ReturnResult, error)
}

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Orders     repositories.OrderRepository
	Payments   repositories.PaymentRepository
	Gateway    PaymentGateway
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	Currency   string
}

type paymentService struct {
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	gateway    PaymentGateway
	unitOfWork repositories.UnitOfWork
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
	currency   string
}

// NewPaymentService constructs the payment service. Gateway may be nil when no electronic
// method is configured; StartCheckout then reports every method as unsupported.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "VND"
	}
	return &paymentService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		gateway:    deps.Gateway,
		unitOfWork: unit,
		now:        func() time.Time { return now().UTC() },
		logger:     logger,
		currency:   currency,
	}, nil
}

func (s *paymentService) GetPayment(ctx context.Context, orderID string) (domain.Payment, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Payment{}, ErrInvalidInput
	}
	payment, err := s.payments.FindByOrder(ctx, id)
	if err != nil {
		return domain.Payment{}, mapRepositoryError(err, ErrPaymentNotFound, nil)
	}
	return payment, nil
}

func (s *paymentService) StartCheckout(ctx context.Context, cmd StartCheckoutCommand) (CheckoutRedirect, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return CheckoutRedirect{}, ErrInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return CheckoutRedirect{}, mapRepositoryError(err, ErrOrderNotFound, nil)
	}
	if order.UserID != userID {
		return CheckoutRedirect{}, ErrOrderNotOwned
	}
	if !order.PaymentMethod.IsElectronic() || s.gateway == nil {
		return CheckoutRedirect{}, fmt.Errorf("%w: %s has no gateway checkout", ErrInvalidPaymentMethod, order.PaymentMethod)
	}
	if order.Status == domain.OrderStatusCancelled {
		return CheckoutRedirect{}, fmt.Errorf("%w: order is cancelled", ErrPaymentNotPending)
	}

	payment, err := s.payments.FindByOrder(ctx, orderID)
	if err != nil {
		return CheckoutRedirect{}, mapRepositoryError(err, ErrPaymentNotFound, nil)
	}
	if payment.Status != domain.PaymentStatusAwaitingPayment {
		return CheckoutRedirect{}, ErrPaymentNotPending
	}

	now := s.now()
	txnRef := fmt.Sprintf("%s-%d", order.OrderNumber, now.UnixMilli())
	req := payments.CheckoutRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TxnRef:         txnRef,
		OrderInfo:      fmt.Sprintf("Payment for order %s", order.OrderNumber),
		Amount:         order.TotalAmount,
		Currency:       s.currency,
		ClientIP:       strings.TrimSpace(cmd.ClientIP),
		BankCode:       strings.TrimSpace(cmd.BankCode),
		Locale:         strings.TrimSpace(cmd.Locale),
		IdempotencyKey: checkoutIdempotencyKey(order.ID, txnRef),
		Items:          checkoutItems(order.Items),
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, string(order.PaymentMethod), req)
	if err != nil {
		s.logger(ctx, "payment.checkout.failed", map[string]any{
			"orderID": order.ID,
			"method":  string(order.PaymentMethod),
			"error":   err.Error(),
		})
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return CheckoutRedirect{}, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, order.PaymentMethod)
		}
		return CheckoutRedirect{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if session.TxnRef != "" {
		txnRef = session.TxnRef
	}

	payment.TxnRef = txnRef
	payment.OrderInfo = req.OrderInfo
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, payment); err != nil {
		return CheckoutRedirect{}, mapRepositoryError(err, ErrPaymentNotFound, ErrStateConflict)
	}

	s.logger(ctx, "payment.checkout.started", map[string]any{
		"orderID": order.ID,
		"method":  string(order.PaymentMethod),
		"txnRef":  txnRef,
	})
	return CheckoutRedirect{
		OrderID:     order.ID,
		Method:      order.PaymentMethod,
		RedirectURL: session.RedirectURL,
		TxnRef:      txnRef,
	}, nil
}

// HandleReturn verifies a gateway callback and records its outcome on the payment. A pending
// gateway result leaves the status untouched so a later callback can settle it.
func (s *paymentService) HandleReturn(ctx context.Context, method domain.PaymentMethod, params map[string]string) (domain.Payment, error) {
	if !method.IsElectronic() || s.gateway == nil {
		return domain.Payment{}, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
	}
	result, err := s.gateway.VerifyReturn(ctx, string(method), params)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidReturn):
			return domain.Payment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case errors.Is(err, payments.ErrUnsupportedProvider):
			return domain.Payment{}, fmt.Errorf("%w: %s", ErrInvalidPaymentMethod, method)
		default:
			return domain.Payment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if strings.TrimSpace(result.TxnRef) == "" {
		return domain.Payment{}, fmt.Errorf("%w: missing transaction reference", ErrInvalidInput)
	}

	var payment domain.Payment
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.payments.FindByTxnRef(txCtx, result.TxnRef)
		if err != nil {
			return mapRepositoryError(err, ErrPaymentNotFound, nil)
		}
		payment = current
		if current.Method != method {
			return fmt.Errorf("%w: payment uses %s", ErrInvalidPaymentMethod, current.Method)
		}
		if current.Status == domain.PaymentStatusSuccess {
			return nil
		}
		// An unsigned return only marks a payment nobody has verified yet. The gateway fields are
		// kept for verified returns.
		if !result.SignatureValid {
			if current.Status != domain.PaymentStatusAwaitingPayment {
				return nil
			}
			payment.Status = domain.PaymentStatusInvalidSignature
		} else {
			payment.ResponseCode = result.ResponseCode
			payment.BankCode = result.BankCode
			payment.CardType = result.CardType
			payment.TransactionNo = result.TransactionNo
			payment.PayDate = result.PayDate
			payment.TransactionStatus = result.TransactionStatus
			payment.SecureHash = result.SecureHash
			switch result.Status {
			case payments.StatusSucceeded:
				payment.Status = domain.PaymentStatusSuccess
			case payments.StatusFailed:
				payment.Status = domain.PaymentStatusFailed
			}
		}
		payment.UpdatedAt = s.now()
		if err := s.payments.Update(txCtx, payment); err != nil {
			return mapRepositoryError(err, ErrPaymentNotFound, ErrStateConflict)
		}
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logger(ctx, "payment.return.recorded", map[string]any{
		"orderID":        payment.OrderID,
		"txnRef":         result.TxnRef,
		"status":         string(payment.Status),
		"signatureValid": result.SignatureValid,
		"responseCode":   result.ResponseCode,
	})
	return payment, nil
}

func checkoutItems(items []domain.OrderItem) []payments.CheckoutLineItem {
	out := make([]payments.CheckoutLineItem, 0, len(items))
	for _, item := range items {
		out = append(out, payments.CheckoutLineItem{
			Name:     item.ProductName,
			Quantity: int64(item.Quantity),
			Amount:   item.UnitPrice,
		})
	}
	return out
}

func checkoutIdempotencyKey(orderID, txnRef string) string {
	sum := sha256.Sum256([]byte(orderID + ":" + txnRef))
	return "checkout_" + hex.EncodeToString(sum[:16])
}
