package quote

import (
	"errors"
	"net/http"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Handler exposes the public quote endpoint.
type Handler struct {
	Service *Service
}

// Create handles POST /api/v1/quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	req.Source = SourceQuote
	q, err := h.Service.Quote(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// WriteError maps quote failures onto the error envelope. Cart and checkout
// handlers reuse it.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing unavailable", nil)
	}
}
