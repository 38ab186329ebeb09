package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/obs"
)

// HTTPRecorder audits admin writes to pricing inputs once the handler has answered.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig names the audited action and where its resource id lives in the route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
}

// Outcome labels stored in entry metadata.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

func outcomeOf(status int) string {
	switch {
	case status >= 500:
		return OutcomeFailed
	case status >= 400:
		return OutcomeRejected
	default:
		return OutcomeApplied
	}
}

// Middleware records one entry per request, including rejected attempts, so a
// refused combo or tax change still shows who tried it.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			meta := map[string]string{"outcome": outcomeOf(recorder.Status())}
			if req.URL.RawQuery != "" {
				meta["query"] = req.URL.RawQuery
			}
			metadata, _ := json.Marshal(meta)

			err := r.Service.Record(req.Context(), actorOf(req), cfg.Action, cfg.ResourceType, resourceID, req, recorder.Status(), metadata)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func actorOf(req *http.Request) Actor {
	if userID, ok := common.UserID(req.Context()); ok && userID != "" {
		return Actor{Kind: ActorKindUser, UserID: userID}
	}
	return Actor{Kind: ActorKindAnonymous}
}
