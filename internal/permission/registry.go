package permission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/audit"
	"github.com/frahmantamala/access-management/internal/core/events"
)

// RepositoryAPI is the storage contract for permission records. Mutating
// methods persist the permission change and its audit entry in one
// transaction: a mutation is never observable without its audit entry. The
// repository decides inside that transaction whether an upsert created or
// replaced a row and rewrites the entry's operation accordingly.
type RepositoryAPI interface {
	GetDataPermission(ctx context.Context, userID int64, entityType string) (*DataPermission, error)
	UpsertDataPermission(ctx context.Context, perm *DataPermission, entry *audit.Entry) (updated bool, err error)
	RevokeDataPermission(ctx context.Context, id int64, entry *audit.Entry) (*DataPermission, error)
	ListDataPermissionsByUser(ctx context.Context, userID int64) ([]*DataPermission, error)

	GetFieldPermissions(ctx context.Context, userID int64, entityType string) ([]*FieldPermission, error)
	GetFieldPermission(ctx context.Context, userID int64, entityType, fieldName string) (*FieldPermission, error)
	UpsertFieldPermission(ctx context.Context, perm *FieldPermission, entry *audit.Entry) (updated bool, err error)
	RevokeFieldPermission(ctx context.Context, id int64, entry *audit.Entry) (*FieldPermission, error)
	ListFieldPermissionsByUser(ctx context.Context, userID int64) ([]*FieldPermission, error)

	CopyToUser(ctx context.Context, sourceUserID, targetUserID, actorID int64, meta internal.RequestMeta) (int, error)
}

type eventPublisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// UserPermissions bundles everything granted to one user for the admin API.
type UserPermissions struct {
	UserID           int64              `json:"user_id"`
	DataPermissions  []*DataPermission  `json:"data_permissions"`
	FieldPermissions []*FieldPermission `json:"field_permissions"`
}

// Registry owns the lifecycle of DataPermission and FieldPermission records.
type Registry struct {
	repo   RepositoryAPI
	bus    eventPublisher
	logger *slog.Logger
}

func NewRegistry(repo RepositoryAPI, bus eventPublisher, logger *slog.Logger) *Registry {
	return &Registry{
		repo:   repo,
		bus:    bus,
		logger: logger,
	}
}

// GrantDataPermission creates or replaces the row-level grant for
// (user, entity type). Validation runs before anything is written; on the
// replace path the audit trail records a modify, not a second grant.
func (r *Registry) GrantDataPermission(ctx context.Context, dto GrantDataPermissionDTO, actorID int64) (*DataPermission, error) {
	if err := dto.Validate(); err != nil {
		r.logger.Warn("data permission grant rejected",
			"error", err,
			"actor_id", actorID,
			"user_id", dto.UserID,
			"entity_type", dto.EntityType)
		return nil, err
	}

	perm := dto.toDomain(actorID)
	meta := internal.RequestMetaFromContext(ctx)

	entry := audit.NewEntry(actorID, audit.OperationGrant, audit.TargetDataPermission).
		WithTargetUser(dto.UserID).
		WithDetails(map[string]interface{}{
			"entity_type": dto.EntityType,
			"scope_type":  string(dto.ScopeType),
			"scope_value": string(dto.ScopeValue),
		}).
		WithRequestMeta(meta.IPAddress, meta.UserAgent)

	updated, err := r.repo.UpsertDataPermission(ctx, perm, entry)
	if err != nil {
		r.logger.Error("failed to persist data permission",
			"error", err,
			"actor_id", actorID,
			"user_id", dto.UserID,
			"entity_type", dto.EntityType)
		return nil, storeError(err)
	}

	r.logger.Info("data permission granted",
		"permission_id", perm.ID,
		"user_id", dto.UserID,
		"entity_type", dto.EntityType,
		"scope_type", dto.ScopeType,
		"replaced_existing", updated,
		"actor_id", actorID)

	r.publish(ctx, events.NewPermissionGrantedEvent(dto.UserID, dto.EntityType, "", actorID))
	mutationsTotal.WithLabelValues(opLabel(updated), "data").Inc()

	return perm, nil
}

// GrantFieldPermission creates or replaces the field-level rule for
// (user, entity type, field).
func (r *Registry) GrantFieldPermission(ctx context.Context, dto GrantFieldPermissionDTO, actorID int64) (*FieldPermission, error) {
	if err := dto.Validate(); err != nil {
		r.logger.Warn("field permission grant rejected",
			"error", err,
			"actor_id", actorID,
			"user_id", dto.UserID,
			"entity_type", dto.EntityType,
			"field_name", dto.FieldName)
		return nil, err
	}

	perm := dto.toDomain(actorID)
	meta := internal.RequestMetaFromContext(ctx)

	entry := audit.NewEntry(actorID, audit.OperationGrant, audit.TargetFieldPermission).
		WithTargetUser(dto.UserID).
		WithDetails(map[string]interface{}{
			"entity_type":     dto.EntityType,
			"field_name":      dto.FieldName,
			"permission_type": string(dto.PermissionType),
			"mask_rule":       string(dto.MaskRule),
			"priority":        dto.Priority,
		}).
		WithRequestMeta(meta.IPAddress, meta.UserAgent)

	updated, err := r.repo.UpsertFieldPermission(ctx, perm, entry)
	if err != nil {
		r.logger.Error("failed to persist field permission",
			"error", err,
			"actor_id", actorID,
			"user_id", dto.UserID,
			"entity_type", dto.EntityType,
			"field_name", dto.FieldName)
		return nil, storeError(err)
	}

	r.logger.Info("field permission granted",
		"permission_id", perm.ID,
		"user_id", dto.UserID,
		"entity_type", dto.EntityType,
		"field_name", dto.FieldName,
		"permission_type", dto.PermissionType,
		"replaced_existing", updated,
		"actor_id", actorID)

	r.publish(ctx, events.NewPermissionGrantedEvent(dto.UserID, dto.EntityType, dto.FieldName, actorID))
	mutationsTotal.WithLabelValues(opLabel(updated), "field").Inc()

	return perm, nil
}

// RevokeDataPermission soft-deletes a grant. Revoking a missing or already
// revoked permission returns NotFound; callers must not treat revoke as
// idempotent.
func (r *Registry) RevokeDataPermission(ctx context.Context, permissionID, actorID int64) error {
	meta := internal.RequestMetaFromContext(ctx)
	entry := audit.NewEntry(actorID, audit.OperationRevoke, audit.TargetDataPermission).
		WithPermissionID(permissionID).
		WithRequestMeta(meta.IPAddress, meta.UserAgent)

	prev, err := r.repo.RevokeDataPermission(ctx, permissionID, entry)
	if err != nil {
		if errors.Is(err, internal.ErrPermissionNotFound) {
			r.logger.Warn("revoke of missing data permission",
				"permission_id", permissionID,
				"actor_id", actorID)
			return internal.ErrPermissionNotFound
		}
		r.logger.Error("failed to revoke data permission",
			"error", err,
			"permission_id", permissionID,
			"actor_id", actorID)
		return storeError(err)
	}

	r.logger.Info("data permission revoked",
		"permission_id", permissionID,
		"user_id", prev.UserID,
		"entity_type", prev.EntityType,
		"actor_id", actorID)

	r.publish(ctx, events.NewPermissionRevokedEvent(prev.UserID, prev.EntityType, "", actorID))
	mutationsTotal.WithLabelValues("revoke", "data").Inc()

	return nil
}

// RevokeFieldPermission soft-deletes a field rule with the same semantics as
// RevokeDataPermission.
func (r *Registry) RevokeFieldPermission(ctx context.Context, permissionID, actorID int64) error {
	meta := internal.RequestMetaFromContext(ctx)
	entry := audit.NewEntry(actorID, audit.OperationRevoke, audit.TargetFieldPermission).
		WithPermissionID(permissionID).
		WithRequestMeta(meta.IPAddress, meta.UserAgent)

	prev, err := r.repo.RevokeFieldPermission(ctx, permissionID, entry)
	if err != nil {
		if errors.Is(err, internal.ErrPermissionNotFound) {
			r.logger.Warn("revoke of missing field permission",
				"permission_id", permissionID,
				"actor_id", actorID)
			return internal.ErrPermissionNotFound
		}
		r.logger.Error("failed to revoke field permission",
			"error", err,
			"permission_id", permissionID,
			"actor_id", actorID)
		return storeError(err)
	}

	r.logger.Info("field permission revoked",
		"permission_id", permissionID,
		"user_id", prev.UserID,
		"entity_type", prev.EntityType,
		"field_name", prev.FieldName,
		"actor_id", actorID)

	r.publish(ctx, events.NewPermissionRevokedEvent(prev.UserID, prev.EntityType, prev.FieldName, actorID))
	mutationsTotal.WithLabelValues("revoke", "field").Inc()

	return nil
}

// CopyToUser duplicates every active permission of the source user that the
// target does not already hold. Existing target permissions are never
// overwritten.
func (r *Registry) CopyToUser(ctx context.Context, dto CopyPermissionsDTO, actorID int64) (int, error) {
	if err := dto.Validate(); err != nil {
		r.logger.Warn("permission copy rejected",
			"error", err,
			"actor_id", actorID,
			"source_user_id", dto.SourceUserID,
			"target_user_id", dto.TargetUserID)
		return 0, err
	}

	meta := internal.RequestMetaFromContext(ctx)
	count, err := r.repo.CopyToUser(ctx, dto.SourceUserID, dto.TargetUserID, actorID, meta)
	if err != nil {
		r.logger.Error("failed to copy permissions",
			"error", err,
			"source_user_id", dto.SourceUserID,
			"target_user_id", dto.TargetUserID,
			"actor_id", actorID)
		return 0, storeError(err)
	}

	r.logger.Info("permissions copied",
		"source_user_id", dto.SourceUserID,
		"target_user_id", dto.TargetUserID,
		"copied_count", count,
		"actor_id", actorID)

	r.publish(ctx, events.NewPermissionCopiedEvent(dto.SourceUserID, dto.TargetUserID, count, actorID))
	mutationsTotal.WithLabelValues("copy", "user").Inc()

	return count, nil
}

// DataPermissionFor returns the active grant for (user, entity type), or nil
// when none exists. Absence is the documented default, not an error.
func (r *Registry) DataPermissionFor(ctx context.Context, userID int64, entityType string) (*DataPermission, error) {
	perm, err := r.repo.GetDataPermission(ctx, userID, entityType)
	if err != nil {
		return nil, storeError(err)
	}
	return perm, nil
}

// FieldPermissionsFor returns every active field rule for (user, entity type).
func (r *Registry) FieldPermissionsFor(ctx context.Context, userID int64, entityType string) ([]*FieldPermission, error) {
	perms, err := r.repo.GetFieldPermissions(ctx, userID, entityType)
	if err != nil {
		return nil, storeError(err)
	}
	return perms, nil
}

// EffectiveFieldPermission returns the highest-priority active rule for the
// exact (user, entity type, field) triple, or nil. There is no cross-field or
// cross-entity inheritance.
func (r *Registry) EffectiveFieldPermission(ctx context.Context, userID int64, entityType, fieldName string) (*FieldPermission, error) {
	perm, err := r.repo.GetFieldPermission(ctx, userID, entityType, fieldName)
	if err != nil {
		return nil, storeError(err)
	}
	return perm, nil
}

// UserPermissions lists everything granted to a user.
func (r *Registry) UserPermissions(ctx context.Context, userID int64) (*UserPermissions, error) {
	dataPerms, err := r.repo.ListDataPermissionsByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	fieldPerms, err := r.repo.ListFieldPermissionsByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return &UserPermissions{
		UserID:           userID,
		DataPermissions:  dataPerms,
		FieldPermissions: fieldPerms,
	}, nil
}

// publish runs cache-invalidation handlers inline. A failed handler is logged
// but does not roll back the already-committed mutation.
func (r *Registry) publish(ctx context.Context, event events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.PublishSync(ctx, event); err != nil {
		r.logger.Warn("permission event fanout failed", "error", err, "event_type", event.EventType())
	}
}

func opLabel(updated bool) string {
	if updated {
		return "modify"
	}
	return "grant"
}

// storeError keeps validation and not-found errors intact and wraps anything
// else as a store failure.
func storeError(err error) error {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr
	}
	return internal.ErrStoreUnavailable.WithCause(err)
}
