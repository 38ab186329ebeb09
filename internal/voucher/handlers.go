package voucher

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Handler exposes voucher endpoints.
type Handler struct {
	Svc *Service
}

type voucherPayload struct {
	Code        string           `json:"code" validate:"required,max=64"`
	Kind        Kind             `json:"kind" validate:"omitempty,oneof=percent fixed"`
	Value       decimal.Decimal  `json:"value"`
	MaxDiscount *decimal.Decimal `json:"maxDiscount"`
	MinSpend    decimal.Decimal  `json:"minSpend"`
	UsageLimit  *int32           `json:"usageLimit" validate:"omitempty,gte=0"`
	ValidFrom   *time.Time       `json:"validFrom"`
	ValidTo     *time.Time       `json:"validTo"`
	Active      *bool            `json:"active"`
}

type previewRequest struct {
	Code string          `json:"code" validate:"required"`
	Base decimal.Decimal `json:"base"`
}

// Create handles POST /api/v1/admin/vouchers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload voucherPayload
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	rule := Rule{
		Code:        payload.Code,
		Kind:        payload.Kind,
		Value:       payload.Value,
		MaxDiscount: payload.MaxDiscount,
		MinSpend:    payload.MinSpend,
		UsageLimit:  payload.UsageLimit,
		ValidTo:     payload.ValidTo,
		Active:      true,
	}
	if payload.ValidFrom != nil {
		rule.ValidFrom = *payload.ValidFrom
	}
	if payload.Active != nil {
		rule.Active = *payload.Active
	}
	saved, err := h.Svc.Create(r.Context(), rule)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": saved})
}

// List handles GET /api/v1/admin/vouchers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	pg := common.Pagination{Page: page, PerPage: perPage}
	items, err := h.Svc.List(r.Context(), pg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	pg.TotalItems = len(items)
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pg})
}

// Preview handles POST /api/v1/vouchers/preview and simulates a discount for a base amount.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.Preview(r.Context(), req.Code, req.Base)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrInvalidRule):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case IsRejection(err):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher unavailable", nil)
	}
}
