package rates

import (
	"context"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Enqueuer is the subset of *asynq.Client used by the handler.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Handler exposes rate endpoints.
type Handler struct {
	Service *Service
	Queue   Enqueuer
}

// Current handles GET /api/v1/rates/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Service.Current(r.Context())})
}

// Refresh handles POST /api/v1/admin/rates/refresh by enqueuing an immediate refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue not configured", nil)
		return
	}
	info, err := h.Queue.EnqueueContext(r.Context(), NewRefreshTask())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not enqueue refresh", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"taskId": info.ID, "queue": info.Queue}})
}
