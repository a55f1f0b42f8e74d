package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hometech/api/internal/domain"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
	"github.com/hometech/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository stores orders with their items and address snapshot embedded in one document.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
	}, nil
}

// Insert creates a new order document.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.base.Create(ctx, order.ID, fromDomainOrder(order))
}

// Update overwrites an existing order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	doc := fromDomainOrder(order)
	return r.base.Update(ctx, order.ID, []firestore.Update{
		{Path: "status", Value: doc.Status},
		{Path: "paymentMethod", Value: doc.PaymentMethod},
		{Path: "updatedAt", Value: doc.UpdatedAt},
		{Path: "confirmedAt", Value: doc.ConfirmedAt},
		{Path: "shippedAt", Value: doc.ShippedAt},
		{Path: "completedAt", Value: doc.CompletedAt},
		{Path: "cancelledAt", Value: doc.CancelledAt},
		{Path: "cancelledBy", Value: doc.CancelledBy},
	}, firestore.Exists)
}

// FindByID loads an order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc), nil
}

// List returns orders matching filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = applyOrderFilter(q, filter).OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc))
	}
	return orders, nil
}

// Count returns the number of orders matching filter.
func (r *OrderRepository) Count(ctx context.Context, filter repositories.OrderListFilter) (int64, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return applyOrderFilter(q, filter)
	})
}

func applyOrderFilter(q firestore.Query, filter repositories.OrderListFilter) firestore.Query {
	if filter.UserID != "" {
		q = q.Where("userId", "==", filter.UserID)
	}
	if filter.Status != nil {
		q = q.Where("status", "==", string(*filter.Status))
	}
	return q
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId"`
	Status          string              `firestore:"status"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	Items           []orderItemDocument `firestore:"items"`
	Subtotal        int64               `firestore:"subtotal"`
	Discount        int64               `firestore:"discount"`
	TotalAmount     int64               `firestore:"totalAmount"`
	VoucherID       *string             `firestore:"voucherId,omitempty"`
	VoucherCode     *string             `firestore:"voucherCode,omitempty"`
	DeliveryAddress addressSnapshot     `firestore:"deliveryAddress"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ConfirmedAt     *time.Time          `firestore:"confirmedAt"`
	ShippedAt       *time.Time          `firestore:"shippedAt"`
	CompletedAt     *time.Time          `firestore:"completedAt"`
	CancelledAt     *time.Time          `firestore:"cancelledAt"`
	CancelledBy     *string             `firestore:"cancelledBy"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
}

type addressSnapshot struct {
	RecipientName string `firestore:"recipientName"`
	Phone         string `firestore:"phone"`
	Street        string `firestore:"street"`
	Ward          string `firestore:"ward"`
	District      string `firestore:"district"`
	City          string `firestore:"city"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	addr := order.DeliveryAddress
	return orderDocument{
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Items:         items,
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		TotalAmount:   order.TotalAmount,
		VoucherID:     order.VoucherID,
		VoucherCode:   order.VoucherCode,
		DeliveryAddress: addressSnapshot{
			RecipientName: addr.RecipientName,
			Phone:         addr.Phone,
			Street:        addr.Street,
			Ward:          addr.Ward,
			District:      addr.District,
			City:          addr.City,
		},
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		ConfirmedAt: utcPtr(order.ConfirmedAt),
		ShippedAt:   utcPtr(order.ShippedAt),
		CompletedAt: utcPtr(order.CompletedAt),
		CancelledAt: utcPtr(order.CancelledAt),
		CancelledBy: order.CancelledBy,
	}
}

func toDomainOrder(doc pfirestore.Document[orderDocument]) domain.Order {
	data := doc.Data
	items := make([]domain.OrderItem, 0, len(data.Items))
	for _, item := range data.Items {
		items = append(items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return domain.Order{
		ID:            doc.ID,
		OrderNumber:   data.OrderNumber,
		UserID:        data.UserID,
		Status:        domain.OrderStatus(data.Status),
		PaymentMethod: domain.PaymentMethod(data.PaymentMethod),
		Items:         items,
		Subtotal:      data.Subtotal,
		Discount:      data.Discount,
		TotalAmount:   data.TotalAmount,
		VoucherID:     data.VoucherID,
		VoucherCode:   data.VoucherCode,
		DeliveryAddress: domain.DeliveryAddress{
			RecipientName: data.DeliveryAddress.RecipientName,
			Phone:         data.DeliveryAddress.Phone,
			Street:        data.DeliveryAddress.Street,
			Ward:          data.DeliveryAddress.Ward,
			District:      data.DeliveryAddress.District,
			City:          data.DeliveryAddress.City,
		},
		CreatedAt:   data.CreatedAt.UTC(),
		UpdatedAt:   data.UpdatedAt.UTC(),
		ConfirmedAt: utcPtr(data.ConfirmedAt),
		ShippedAt:   utcPtr(data.ShippedAt),
		CompletedAt: utcPtr(data.CompletedAt),
		CancelledAt: utcPtr(data.CancelledAt),
		CancelledBy: data.CancelledBy,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
