package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Handler serves the authenticated user's orders.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	writeList(w, r, h.Svc, userID)
}

// Get handles GET /api/v1/orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// List handles GET /api/v1/admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, h.Svc, "")
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// PatchStatus handles PATCH /api/v1/admin/orders/{id}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	var req patchStatusRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	actor, _ := common.UserID(r.Context())
	o, err := h.Svc.ChangeStatus(r.Context(), chi.URLParam(r, "id"), req.Status, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// ComboReport handles GET /api/v1/admin/reports/combo?from=&to= with RFC 3339 or YYYY-MM-DD bounds.
func (h *AdminHandler) ComboReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseBound(r.URL.Query().Get("from"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from", nil)
		return
	}
	to, err := parseBound(r.URL.Query().Get("to"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to", nil)
		return
	}
	rows, err := h.Svc.ComboReport(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func writeList(w http.ResponseWriter, r *http.Request, svc *Service, userID string) {
	page, perPage := common.ParsePagination(r, 20)
	pg := common.Pagination{Page: page, PerPage: perPage}
	res, err := svc.List(r.Context(), userID, Status(r.URL.Query().Get("status")), pg)
	if err != nil {
		writeError(w, err)
		return
	}
	pg.TotalItems = int(res.Total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(res.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": res.Items, "pagination": pg})
}

func parseBound(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidStatus):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "orders unavailable", nil)
	}
}
