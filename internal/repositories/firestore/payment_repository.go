package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
)

const paymentCollection = "payments"

// PaymentRepository stores one payment document per order, keyed by the order ID.
type PaymentRepository struct {
	base *pfirestore.BaseRepository[paymentDocument]
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{
		base: pfirestore.NewBaseRepository[paymentDocument](provider, paymentCollection),
	}, nil
}

// Insert creates the payment record of an order.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	return r.base.Create(ctx, payment.OrderID, fromDomainPayment(payment))
}

// Update overwrites the payment record of an order.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	doc := fromDomainPayment(payment)
	return r.base.Update(ctx, payment.OrderID, []firestore.Update{
		{Path: "status", Value: doc.Status},
		{Path: "txnRef", Value: doc.TxnRef},
		{Path: "responseCode", Value: doc.ResponseCode},
		{Path: "bankCode", Value: doc.BankCode},
		{Path: "cardType", Value: doc.CardType},
		{Path: "transactionNo", Value: doc.TransactionNo},
		{Path: "payDate", Value: doc.PayDate},
		{Path: "transactionStatus", Value: doc.TransactionStatus},
		{Path: "secureHash", Value: doc.SecureHash},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}, firestore.Exists)
}

// FindByOrder loads the payment record of an order.
func (r *PaymentRepository) FindByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Payment{}, err
	}
	return toDomainPayment(doc), nil
}

// FindByTxnRef loads the payment carrying the gateway transaction reference.
func (r *PaymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (domain.Payment, error) {
	if txnRef == "" {
		return domain.Payment{}, notFoundError("payments.find_by_txn_ref")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("txnRef", "==", txnRef).Limit(1)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if len(docs) == 0 {
		return domain.Payment{}, notFoundError("payments.find_by_txn_ref")
	}
	return toDomainPayment(docs[0]), nil
}

type paymentDocument struct {
	PaymentID         string    `firestore:"paymentId"`
	Method            string    `firestore:"method"`
	Amount            int64     `firestore:"amount"`
	Status            string    `firestore:"status"`
	OrderInfo         string    `firestore:"orderInfo"`
	TxnRef            string    `firestore:"txnRef"`
	ResponseCode      string    `firestore:"responseCode,omitempty"`
	BankCode          string    `firestore:"bankCode,omitempty"`
	CardType          string    `firestore:"cardType,omitempty"`
	TransactionNo     string    `firestore:"transactionNo,omitempty"`
	PayDate           string    `firestore:"payDate,omitempty"`
	TransactionStatus string    `firestore:"transactionStatus,omitempty"`
	SecureHash        string    `firestore:"secureHash,omitempty"`
	CreatedAt         time.Time `firestore:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

func fromDomainPayment(p domain.Payment) paymentDocument {
	return paymentDocument{
		PaymentID:         p.ID,
		Method:            string(p.Method),
		Amount:            p.Amount,
		Status:            string(p.Status),
		OrderInfo:         p.OrderInfo,
		TxnRef:            p.TxnRef,
		ResponseCode:      p.ResponseCode,
		BankCode:          p.BankCode,
		CardType:          p.CardType,
		TransactionNo:     p.TransactionNo,
		PayDate:           p.PayDate,
		TransactionStatus: p.TransactionStatus,
		SecureHash:        p.SecureHash,
		CreatedAt:         p.CreatedAt.UTC(),
		UpdatedAt:         p.UpdatedAt.UTC(),
	}
}

func toDomainPayment(doc pfirestore.Document[paymentDocument]) domain.Payment {
	data := doc.Data
	return domain.Payment{
		ID:                data.PaymentID,
		OrderID:           doc.ID,
		Method:            domain.PaymentMethod(data.Method),
		Amount:            data.Amount,
		Status:            domain.PaymentStatus(data.Status),
		OrderInfo:         data.OrderInfo,
		TxnRef:            data.TxnRef,
		ResponseCode:      data.ResponseCode,
		BankCode:          data.BankCode,
		CardType:          data.CardType,
		TransactionNo:     data.TransactionNo,
		PayDate:           data.PayDate,
		TransactionStatus: data.TransactionStatus,
		SecureHash:        data.SecureHash,
		CreatedAt:         data.CreatedAt.UTC(),
		UpdatedAt:         data.UpdatedAt.UTC(),
	}
}
