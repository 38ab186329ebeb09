package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	Service *Service
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	q := r.URL.Query()
	pg := common.Pagination{Page: page, PerPage: perPage}
	result, err := h.Service.List(r.Context(), ListParams{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Limit:    perPage,
		Offset:   pg.Offset(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	pg.TotalItems = int(result.Total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": result.Items, "pagination": pg})
}

// Product handles GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Upsert handles PUT /api/v1/admin/products.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	saved, err := h.Service.Upsert(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrInvalidProduct), errors.Is(err, ErrUnknownOption):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PRODUCT", err.Error(), nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog unavailable", nil)
	}
}
