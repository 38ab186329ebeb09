package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/lock"
	"github.com/noah-isme/b2b-storefront/internal/quote"
	"github.com/noah-isme/b2b-storefront/internal/voucher"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Svc *Service
}

// Checkout creates an order from the caller's cart or the submitted lines.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload Input
	if err := common.DecodeAndValidate(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Create(r.Context(), userID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, lock.ErrBusy):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "another checkout is in progress", nil)
	case errors.Is(err, voucher.ErrUsageLimitReached):
		common.JSONError(w, http.StatusConflict, "COUPON_EXHAUSTED", "coupon usage limit reached", nil)
	default:
		quote.WriteError(w, err)
	}
}
