package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/platform/httpx"
	"github.com/hometech/api/internal/services"
)

const defaultOrderListLimit = 100

// OrderHandlers exposes order placement, lifecycle and query endpoints.
type OrderHandlers struct {
	orders      services.OrderService
	createGuard []func(http.Handler) http.Handler
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithCreateMiddlewares wraps POST /orders/create, typically with idempotency and rate limiting.
func WithCreateMiddlewares(mw ...func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		for _, m := range mw {
			if m != nil {
				h.createGuard = append(h.createGuard, m)
			}
		}
	}
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listAll)
	r.Get("/count", h.countAll)
	r.Get("/statuses", h.statuses)
	r.Get("/preview", h.preview)
	r.With(h.createGuard...).Post("/create/{userId}", h.create)

	r.Get("/user/{userId}", h.listByUser)
	r.Get("/user/{userId}/status/{status}", h.listByUserAndStatus)
	r.Get("/user/{userId}/count", h.countByUser)

	r.Get("/{orderId}", h.get)
	r.Get("/{orderId}/can-cancel", h.canCancel)
	r.Put("/{orderId}/status", h.updateStatus)
	r.Put("/{orderId}/cancel/user/{userId}", h.cancelByUser)
	r.Put("/{orderId}/cancel/admin", h.cancelByAdmin)
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	UserID          string                 `json:"userId"`
	Status          domain.OrderStatus     `json:"status"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Items           []orderItemPayload     `json:"items"`
	Subtotal        int64                  `json:"subtotal"`
	Discount        int64                  `json:"discount"`
	TotalAmount     int64                  `json:"totalAmount"`
	VoucherCode     string                 `json:"voucherCode,omitempty"`
	DeliveryAddress deliveryAddressPayload `json:"deliveryAddress"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
	ConfirmedAt     string                 `json:"confirmedAt,omitempty"`
	ShippedAt       string                 `json:"shippedAt,omitempty"`
	CompletedAt     string                 `json:"completedAt,omitempty"`
	CancelledAt     string                 `json:"cancelledAt,omitempty"`
	CancelledBy     string                 `json:"cancelledBy,omitempty"`
}

type orderItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	LineTotal   int64  `json:"lineTotal"`
}

type deliveryAddressPayload struct {
	RecipientName string `json:"recipientName"`
	Phone         string `json:"phone"`
	Street        string `json:"street,omitempty"`
	Ward          string `json:"ward,omitempty"`
	District      string `json:"district,omitempty"`
	City          string `json:"city,omitempty"`
	FullAddress   string `json:"fullAddress"`
}

type previewPayload struct {
	Items          []orderItemPayload `json:"items"`
	Subtotal       int64              `json:"subtotal"`
	Discount       int64              `json:"discount"`
	FinalTotal     int64              `json:"finalTotal"`
	VoucherValid   bool               `json:"voucherValid"`
	VoucherMessage string             `json:"voucherMessage,omitempty"`
}

type statusCountPayload struct {
	Status domain.OrderStatus `json:"status"`
	Count  int64              `json:"count"`
}

type canCancelPayload struct {
	OrderID   string `json:"orderId"`
	CanCancel bool   `json:"canCancel"`
}

func (h *OrderHandlers) preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	preview, err := h.orders.PreviewOrder(ctx, userID, r.URL.Query().Get("voucherCode"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Order preview", previewPayload{
		Items:          buildOrderItems(preview.Items),
		Subtotal:       preview.Subtotal,
		Discount:       preview.Discount,
		FinalTotal:     preview.FinalTotal,
		VoucherValid:   preview.VoucherValid,
		VoucherMessage: preview.VoucherMessage,
	})
}

func (h *OrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	query := r.URL.Query()
	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:        userID,
		VoucherCode:   query.Get("voucherCode"),
		PaymentMethod: query.Get("paymentMethod"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteCreated(w, fmt.Sprintf("Order %s placed", order.OrderNumber), buildOrderPayload(order))
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Order "+order.OrderNumber, buildOrderPayload(order))
}

func (h *OrderHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	query, ok := h.orderQuery(w, r, "")
	if !ok {
		return
	}
	h.writeList(w, r, query, "All orders")
}

func (h *OrderHandlers) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	query, ok := h.orderQuery(w, r, userID)
	if !ok {
		return
	}
	h.writeList(w, r, query, "Orders of customer "+userID)
}

func (h *OrderHandlers) listByUserAndStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	raw, err := pathParam(r, "status")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	query, ok := h.orderQuery(w, r, userID)
	if !ok {
		return
	}
	status := domain.OrderStatus(raw)
	query.Status = &status
	h.writeList(w, r, query, fmt.Sprintf("Orders of customer %s with status %s", userID, strings.ToUpper(raw)))
}

func (h *OrderHandlers) countAll(w http.ResponseWriter, r *http.Request) {
	query, ok := h.orderQuery(w, r, "")
	if !ok {
		return
	}
	h.writeCounts(w, r, query)
}

func (h *OrderHandlers) countByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return
	}
	query, ok := h.orderQuery(w, r, userID)
	if !ok {
		return
	}
	h.writeCounts(w, r, query)
}

func (h *OrderHandlers) statuses(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteOK(w, "Order statuses", domain.OrderStatuses)
}

func (h *OrderHandlers) canCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	allowed, err := h.orders.CanCancel(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	message := "Order can no longer be cancelled"
	if allowed {
		message = "Order can be cancelled"
	}
	httpx.WriteOK(w, message, canCancelPayload{OrderID: orderID, CanCancel: allowed})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	raw, err := requiredQuery(r, "newStatus")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(ctx, orderID, domain.OrderStatus(raw))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status), buildOrderPayload(order))
}

func (h *OrderHandlers) cancelByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.CancelByUser(ctx, userID, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, fmt.Sprintf("Order %s cancelled", order.OrderNumber), buildOrderPayload(order))
}

func (h *OrderHandlers) cancelByAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	order, err := h.orders.CancelByAdmin(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, fmt.Sprintf("Order %s cancelled by admin", order.OrderNumber), buildOrderPayload(order))
}

// orderQuery reads the optional status and limit query parameters.
func (h *OrderHandlers) orderQuery(w http.ResponseWriter, r *http.Request, userID string) (services.OrderQuery, bool) {
	limit, err := intQuery(r, "limit", defaultOrderListLimit)
	if err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return services.OrderQuery{}, false
	}
	query := services.OrderQuery{UserID: userID, Limit: limit}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(raw)
		query.Status = &status
	}
	return query, true
}

func (h *OrderHandlers) writeList(w http.ResponseWriter, r *http.Request, query services.OrderQuery, message string) {
	orders, err := h.orders.ListOrders(r.Context(), query)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteOK(w, message, payload)
}

func (h *OrderHandlers) writeCounts(w http.ResponseWriter, r *http.Request, query services.OrderQuery) {
	query.Limit = 0
	counts, err := h.orders.CountOrders(r.Context(), query)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]statusCountPayload, 0, len(counts))
	for _, c := range counts {
		payload = append(payload, statusCountPayload{Status: c.Status, Count: c.Count})
	}
	httpx.WriteOK(w, "Order counts", payload)
}

func buildOrderPayload(order domain.Order) orderPayload {
	addr := order.DeliveryAddress
	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		Items:         buildOrderItems(order.Items),
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		TotalAmount:   order.TotalAmount,
		DeliveryAddress: deliveryAddressPayload{
			RecipientName: addr.RecipientName,
			Phone:         addr.Phone,
			Street:        addr.Street,
			Ward:          addr.Ward,
			District:      addr.District,
			City:          addr.City,
			FullAddress:   addr.FullAddress(),
		},
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		ConfirmedAt: formatTimePtr(order.ConfirmedAt),
		ShippedAt:   formatTimePtr(order.ShippedAt),
		CompletedAt: formatTimePtr(order.CompletedAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
	}
	if order.VoucherCode != nil {
		payload.VoucherCode = *order.VoucherCode
	}
	if order.CancelledBy != nil {
		payload.CancelledBy = *order.CancelledBy
	}
	return payload
}

func buildOrderItems(items []domain.OrderItem) []orderItemPayload {
	payload := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
		})
	}
	return payload
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
