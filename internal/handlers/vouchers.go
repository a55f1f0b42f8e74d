package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/platform/httpx"
	"github.com/hometech/api/internal/services"
)

// VoucherHandlers exposes voucher redemption and the admin voucher CRUD.
type VoucherHandlers struct {
	vouchers   services.VoucherService
	applyGuard []func(http.Handler) http.Handler
}

// VoucherHandlerOption customises VoucherHandlers.
type VoucherHandlerOption func(*VoucherHandlers)

// WithApplyMiddlewares wraps GET /vouchers/apply, which consumes a redemption on every call.
func WithApplyMiddlewares(mw ...func(http.Handler) http.Handler) VoucherHandlerOption {
	return func(h *VoucherHandlers) {
		for _, m := range mw {
			if m != nil {
				h.applyGuard = append(h.applyGuard, m)
			}
		}
	}
}

// NewVoucherHandlers constructs voucher handlers.
func NewVoucherHandlers(vouchers services.VoucherService, opts ...VoucherHandlerOption) *VoucherHandlers {
	h := &VoucherHandlers{vouchers: vouchers}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /vouchers endpoints.
func (h *VoucherHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.applyGuard...).Get("/apply", h.apply)
	r.Get("/", h.list)
	r.Get("/code/{code}", h.getByCode)
	r.Post("/", h.create)
	r.Put("/{voucherId}", h.update)
	r.Delete("/{voucherId}", h.delete)
}

type voucherRequest struct {
	Code            string    `json:"code"`
	DiscountPercent *float64  `json:"discountPercent"`
	DiscountAmount  *int64    `json:"discountAmount"`
	MinOrderValue   int64     `json:"minOrderValue"`
	UsageLimit      int       `json:"usageLimit"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	Active          *bool     `json:"active"`
}

func (req voucherRequest) command() services.VoucherCommand {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return services.VoucherCommand{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		MinOrderValue:   req.MinOrderValue,
		UsageLimit:      req.UsageLimit,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Active:          active,
	}
}

type voucherPayload struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	DiscountPercent *float64 `json:"discountPercent,omitempty"`
	DiscountAmount  *int64   `json:"discountAmount,omitempty"`
	MinOrderValue   int64    `json:"minOrderValue"`
	UsageLimit      int      `json:"usageLimit"`
	UsedCount       int      `json:"usedCount"`
	Remaining       int      `json:"remaining"`
	StartDate       string   `json:"startDate"`
	EndDate         string   `json:"endDate"`
	Active          bool     `json:"active"`
}

type voucherApplicationPayload struct {
	Code       string `json:"code"`
	Discount   int64  `json:"discount"`
	FinalTotal int64  `json:"finalTotal"`
	Remaining  int    `json:"remaining"`
}

func (h *VoucherHandlers) apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, err := requiredQuery(r, "code")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	total, err := int64Query(r, "orderTotal")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	result, err := h.vouchers.Apply(ctx, code, total)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, fmt.Sprintf("Voucher %s applied", result.Voucher.Code), voucherApplicationPayload{
		Code:       result.Voucher.Code,
		Discount:   result.Discount,
		FinalTotal: result.FinalTotal,
		Remaining:  result.Voucher.Remaining(),
	})
}

func (h *VoucherHandlers) list(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.ListVouchers(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]voucherPayload, 0, len(vouchers))
	for _, v := range vouchers {
		payload = append(payload, buildVoucherPayload(v))
	}
	httpx.WriteOK(w, "Vouchers", payload)
}

func (h *VoucherHandlers) getByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, err := pathParam(r, "code")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	voucher, err := h.vouchers.GetVoucher(ctx, code)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Voucher "+voucher.Code, buildVoucherPayload(voucher))
}

func (h *VoucherHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req voucherRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	voucher, err := h.vouchers.CreateVoucher(ctx, req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteCreated(w, "Voucher created", buildVoucherPayload(voucher))
}

func (h *VoucherHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voucherID, err := pathParam(r, "voucherId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	var req voucherRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	voucher, err := h.vouchers.UpdateVoucher(ctx, voucherID, req.command())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Voucher updated", buildVoucherPayload(voucher))
}

func (h *VoucherHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voucherID, err := pathParam(r, "voucherId")
	if err != nil {
		writeBadRequest(ctx, w, err.Error())
		return
	}
	if err := h.vouchers.DeleteVoucher(ctx, voucherID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteOK(w, "Voucher deleted", nil)
}

func buildVoucherPayload(v domain.Voucher) voucherPayload {
	return voucherPayload{
		ID:              v.ID,
		Code:            v.Code,
		DiscountPercent: v.DiscountPercent,
		DiscountAmount:  v.DiscountAmount,
		MinOrderValue:   v.MinOrderValue,
		UsageLimit:      v.UsageLimit,
		UsedCount:       v.UsedCount,
		Remaining:       v.Remaining(),
		StartDate:       formatTime(v.StartDate),
		EndDate:         formatTime(v.EndDate),
		Active:          v.Active,
	}
}
