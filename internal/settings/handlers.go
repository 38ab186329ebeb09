package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

// Handler exposes settings endpoints.
type Handler struct {
	Service *Service
}

type taxPayload struct {
	RatePercent decimal.Decimal `json:"ratePercent"`
}

// PublicCombo handles GET /api/v1/combo so storefronts can advertise the running promotion.
func (h *Handler) PublicCombo(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.Combo(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cfg})
}

// GetCombo handles GET /api/v1/admin/settings/combo.
func (h *Handler) GetCombo(w http.ResponseWriter, r *http.Request) {
	h.PublicCombo(w, r)
}

// PutCombo handles PUT /api/v1/admin/settings/combo.
func (h *Handler) PutCombo(w http.ResponseWriter, r *http.Request) {
	var cfg pricing.ComboConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	actor, _ := common.UserID(r.Context())
	rev, err := h.Service.SaveCombo(r.Context(), cfg, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rev})
}

// ComboHistory handles GET /api/v1/admin/settings/combo/history.
func (h *Handler) ComboHistory(w http.ResponseWriter, r *http.Request) {
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 20)
	revs, err := h.Service.ComboHistory(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": revs})
}

// GetTax handles GET /api/v1/admin/settings/tax.
func (h *Handler) GetTax(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Service.TaxRate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": taxPayload{RatePercent: rate}})
}

// PutTax handles PUT /api/v1/admin/settings/tax.
func (h *Handler) PutTax(w http.ResponseWriter, r *http.Request) {
	var body taxPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	actor, _ := common.UserID(r.Context())
	if err := h.Service.SetTaxRate(r.Context(), body.RatePercent, actor); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": body})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidComboConfig), errors.Is(err, ErrInvalidTaxRate):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings unavailable", nil)
	}
}
