package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/platform/httpx"
	"github.com/hometech/api/internal/services"
)

// CartHandlers exposes the per-customer cart endpoints.
type CartHandlers struct {
	carts  services.CartService
	policy *bluemonday.Policy
}

// NewCartHandlers constructs cart handlers. Product descriptions are reduced to plain text before
// they are returned.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{
		carts:  carts,
		policy: bluemonday.StrictPolicy(),
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/user/{userId}", h.listItems)
	r.Post("/add", h.addItem)
	r.Put("/increase/{userId}/{lineId}", h.increase)
	r.Put("/decrease/{userId}/{lineId}", h.decrease)
	r.Delete("/remove/{userId}/{lineId}", h.remove)
}

type cartItemPayload struct {
	ID        string         `json:"id"`
	Quantity  int            `json:"quantity"`
	LineTotal int64          `json:"lineTotal"`
	Product   productPayload `json:"product"`
}

type productPayload struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

func (h *CartHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	items, err := h.carts.ListItems(ctx, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, h.buildItem(item))
	}
	httpx.WriteOK(w, "Cart loaded", payload)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := requiredQuery(r, "userId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	productID, err := requiredQuery(r, "productId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	quantity, err := intQuery(r, "quantity", 1)
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}

	item, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Product added to cart", h.buildItem(item))
}

func (h *CartHandlers) increase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	item, err := h.carts.IncreaseQuantity(ctx, userID, lineID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Quantity increased", h.buildItem(item))
}

func (h *CartHandlers) decrease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	item, err := h.carts.DecreaseQuantity(ctx, userID, lineID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if item == nil {
		httpx.WriteOK(w, "Item removed from cart", nil)
		return
	}
	httpx.WriteOK(w, "Quantity decreased", h.buildItem(*item))
}

func (h *CartHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, lineID, ok := lineParams(w, r)
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(ctx, userID, lineID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Item removed from cart", nil)
}

func lineParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, err := pathParam(r, "userId")
	if err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return "", "", false
	}
	lineID, err := pathParam(r, "lineId")
	if err != nil {
		writeBadRequest(r.Context(), w, err.Error())
		return "", "", false
	}
	return userID, lineID, true
}

func (h *CartHandlers) buildItem(item services.CartItem) cartItemPayload {
	return cartItemPayload{
		ID:        item.Line.ID,
		Quantity:  item.Line.Quantity,
		LineTotal: item.LineTotal(),
		Product:   h.buildProduct(item.Product),
	}
}

func (h *CartHandlers) buildProduct(product domain.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		CategoryID:  product.CategoryID,
		Name:        product.Name,
		Description: strings.TrimSpace(h.policy.Sanitize(product.Description)),
		Price:       product.Price,
		Stock:       product.Stock,
	}
}
