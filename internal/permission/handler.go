package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/logger"
)

type RegistryAPI interface {
	GrantDataPermission(ctx context.Context, dto GrantDataPermissionDTO, actorID int64) (*DataPermission, error)
	GrantFieldPermission(ctx context.Context, dto GrantFieldPermissionDTO, actorID int64) (*FieldPermission, error)
	RevokeDataPermission(ctx context.Context, permissionID, actorID int64) error
	RevokeFieldPermission(ctx context.Context, permissionID, actorID int64) error
	CopyToUser(ctx context.Context, dto CopyPermissionsDTO, actorID int64) (int, error)
	UserPermissions(ctx context.Context, userID int64) (*UserPermissions, error)
}

type EngineAPI interface {
	GetDataScope(ctx context.Context, actor Actor, entityType string) (ScopeFilter, error)
}

type Handler struct {
	*transport.BaseHandler
	Registry RegistryAPI
	Engine   EngineAPI
}

func NewHandler(registry RegistryAPI, engine EngineAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Registry:    registry,
		Engine:      engine,
	}
}

// requireAdmin resolves the caller and rejects non-superusers. Permission
// administration is restricted to superusers; regular users only ever hit the
// engine indirectly through domain endpoints.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if !user.IsSuperuser {
		h.Logger.Warn("permission admin endpoint rejected non-superuser",
			"user_id", user.ID,
			"path", r.URL.Path)
		h.WriteError(w, http.StatusForbidden, "superuser required")
		return nil, false
	}
	return user, true
}

func (h *Handler) GrantDataPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var dto GrantDataPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("GrantDataPermission: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.Registry.GrantDataPermission(r.Context(), dto, user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, perm)
}

func (h *Handler) GrantFieldPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var dto GrantFieldPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("GrantFieldPermission: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.Registry.GrantFieldPermission(r.Context(), dto, user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, perm)
}

func (h *Handler) RevokeDataPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid permission ID")
		return
	}

	if err := h.Registry.RevokeDataPermission(r.Context(), id, user.ID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokeFieldPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid permission ID")
		return
	}

	if err := h.Registry.RevokeFieldPermission(r.Context(), id, user.ID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CopyPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var dto CopyPermissionsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CopyPermissions: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.Registry.CopyToUser(r.Context(), dto, user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source_user_id": dto.SourceUserID,
		"target_user_id": dto.TargetUserID,
		"copied_count":   count,
	})
}

func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	perms, err := h.Registry.UserPermissions(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, perms)
}

// GetMyScope lets any authenticated user inspect the row scope they hold for
// an entity type. This is the one permission endpoint not gated on superuser.
func (h *Handler) GetMyScope(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entityType := r.URL.Query().Get("entity_type")
	if entityType == "" {
		h.WriteError(w, http.StatusBadRequest, "entity_type is required")
		return
	}

	actor := Actor{ID: user.ID, IsSuperuser: user.IsSuperuser}
	filter, err := h.Engine.GetDataScope(r.Context(), actor, entityType)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entity_type": entityType,
		"scope":       filter,
	})
}

// RegisterRoutes mounts the permission admin API onto the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Post("/data", h.GrantDataPermission)
		r.Delete("/data/{id}", h.RevokeDataPermission)
		r.Post("/fields", h.GrantFieldPermission)
		r.Delete("/fields/{id}", h.RevokeFieldPermission)
		r.Post("/copy", h.CopyPermissions)
		r.Get("/users/{id}", h.GetUserPermissions)
		r.Get("/scope", h.GetMyScope)
	})
}
