package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
)

type ServiceAPI interface {
	List(ctx context.Context, q Query) ([]*Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// ListEntries answers GET /audit for superusers. Filters come in as query
// parameters; unknown parameters are ignored.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !user.IsSuperuser {
		h.Logger.Warn("audit endpoint rejected non-superuser", "user_id", user.ID)
		h.WriteError(w, http.StatusForbidden, "superuser required")
		return
	}

	q, err := queryFromRequest(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.Service.List(r.Context(), q)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func queryFromRequest(r *http.Request) (Query, error) {
	var q Query
	params := r.URL.Query()

	for name, dst := range map[string]*int64{
		"actor_id":       &q.ActorID,
		"target_user_id": &q.TargetUserID,
		"permission_id":  &q.PermissionID,
	} {
		if raw := params.Get(name); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return q, &queryParamError{name}
			}
			*dst = v
		}
	}

	q.Operation = OperationType(params.Get("operation"))
	q.TargetType = TargetType(params.Get("target_type"))

	for name, dst := range map[string]*time.Time{
		"since": &q.Since,
		"until": &q.Until,
	} {
		if raw := params.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return q, &queryParamError{name}
			}
			*dst = t
		}
	}

	if raw := params.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, &queryParamError{"limit"}
		}
		q.Limit = v
	}
	if raw := params.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, &queryParamError{"offset"}
		}
		q.Offset = v
	}

	return q, nil
}

type queryParamError struct {
	param string
}

func (e *queryParamError) Error() string {
	return "invalid query parameter: " + e.param
}
