package audit

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit-logs?resource=&page=&limit=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	pg := common.Pagination{Page: page, PerPage: perPage}

	rows, total, err := h.Store.List(r.Context(), ListParams{
		ResourceType: r.URL.Query().Get("resource"),
		Limit:        perPage,
		Offset:       pg.Offset(),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	pg.TotalItems = int(total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "pagination": pg})
}
