package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/audit"
	permDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/access-management/internal/permission"
)

// PermissionRepository implements permission.RepositoryAPI using GORM. Every
// mutation runs in a transaction that also inserts the audit entry, so a
// permission change and its trail commit or roll back together.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) GetDataPermission(ctx context.Context, userID int64, entityType string) (*permission.DataPermission, error) {
	var model permDatamodel.DataPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND entity_type = ?", userID, entityType).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return permission.DataPermissionFromModel(&model), nil
}

// UpsertDataPermission replaces any existing grant for (user, entity type) in
// place, keeping the row ID stable. The audit entry's operation is rewritten
// to modify when a row was replaced.
func (r *PermissionRepository) UpsertDataPermission(ctx context.Context, perm *permission.DataPermission, entry *audit.Entry) (bool, error) {
	var updated bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := permission.DataPermissionToModel(perm)

		var existing permDatamodel.DataPermission
		err := tx.Where("user_id = ? AND entity_type = ?", perm.UserID, perm.EntityType).
			First(&existing).Error
		switch {
		case err == nil:
			updated = true
			model.ID = existing.ID
			model.CreatedBy = existing.CreatedBy
			model.CreatedAt = existing.CreatedAt
			model.UpdatedBy = perm.CreatedBy
			model.UpdatedAt = time.Now()
			if err := tx.Save(model).Error; err != nil {
				return err
			}
			entry.Operation = audit.OperationModify
			if entry.Details == nil {
				entry.Details = map[string]interface{}{}
			}
			entry.Details["previous_scope_type"] = existing.ScopeType
			entry.Details["previous_scope_value"] = existing.ScopeValue
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		default:
			return err
		}

		perm.ID = model.ID
		perm.CreatedAt = model.CreatedAt
		perm.UpdatedAt = model.UpdatedAt
		entry.WithPermissionID(model.ID)

		return tx.Create(audit.ToDataModel(entry)).Error
	})

	return updated, err
}

// RevokeDataPermission soft-deletes the grant and returns its pre-deletion
// state. A missing or already revoked row is NotFound.
func (r *PermissionRepository) RevokeDataPermission(ctx context.Context, id int64, entry *audit.Entry) (*permission.DataPermission, error) {
	var prev *permission.DataPermission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model permDatamodel.DataPermission
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrPermissionNotFound
			}
			return err
		}

		if err := tx.Delete(&model).Error; err != nil {
			return err
		}

		prev = permission.DataPermissionFromModel(&model)

		entry.WithTargetUser(model.UserID)
		if entry.Details == nil {
			entry.Details = map[string]interface{}{}
		}
		entry.Details["entity_type"] = model.EntityType
		entry.Details["scope_type"] = model.ScopeType
		entry.Details["scope_value"] = model.ScopeValue

		return tx.Create(audit.ToDataModel(entry)).Error
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (r *PermissionRepository) ListDataPermissionsByUser(ctx context.Context, userID int64) ([]*permission.DataPermission, error) {
	var models []*permDatamodel.DataPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entity_type ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return permission.DataPermissionsFromModel(models), nil
}

func (r *PermissionRepository) GetFieldPermissions(ctx context.Context, userID int64, entityType string) ([]*permission.FieldPermission, error) {
	var models []*permDatamodel.FieldPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND entity_type = ?", userID, entityType).
		Order("field_name ASC, priority DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return permission.FieldPermissionsFromModel(models), nil
}

func (r *PermissionRepository) GetFieldPermission(ctx context.Context, userID int64, entityType, fieldName string) (*permission.FieldPermission, error) {
	var model permDatamodel.FieldPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND entity_type = ? AND field_name = ?", userID, entityType, fieldName).
		Order("priority DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return permission.FieldPermissionFromModel(&model), nil
}

// UpsertFieldPermission mirrors UpsertDataPermission for the
// (user, entity type, field) key.
func (r *PermissionRepository) UpsertFieldPermission(ctx context.Context, perm *permission.FieldPermission, entry *audit.Entry) (bool, error) {
	var updated bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := permission.FieldPermissionToModel(perm)

		var existing permDatamodel.FieldPermission
		err := tx.Where("user_id = ? AND entity_type = ? AND field_name = ?",
			perm.UserID, perm.EntityType, perm.FieldName).
			First(&existing).Error
		switch {
		case err == nil:
			updated = true
			model.ID = existing.ID
			model.CreatedBy = existing.CreatedBy
			model.CreatedAt = existing.CreatedAt
			model.UpdatedBy = perm.CreatedBy
			model.UpdatedAt = time.Now()
			if err := tx.Save(model).Error; err != nil {
				return err
			}
			entry.Operation = audit.OperationModify
			if entry.Details == nil {
				entry.Details = map[string]interface{}{}
			}
			entry.Details["previous_permission_type"] = existing.PermissionType
			entry.Details["previous_mask_rule"] = existing.MaskRule
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		default:
			return err
		}

		perm.ID = model.ID
		perm.CreatedAt = model.CreatedAt
		perm.UpdatedAt = model.UpdatedAt
		entry.WithPermissionID(model.ID)

		return tx.Create(audit.ToDataModel(entry)).Error
	})

	return updated, err
}

func (r *PermissionRepository) RevokeFieldPermission(ctx context.Context, id int64, entry *audit.Entry) (*permission.FieldPermission, error) {
	var prev *permission.FieldPermission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model permDatamodel.FieldPermission
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrPermissionNotFound
			}
			return err
		}

		if err := tx.Delete(&model).Error; err != nil {
			return err
		}

		prev = permission.FieldPermissionFromModel(&model)

		entry.WithTargetUser(model.UserID)
		if entry.Details == nil {
			entry.Details = map[string]interface{}{}
		}
		entry.Details["entity_type"] = model.EntityType
		entry.Details["field_name"] = model.FieldName
		entry.Details["permission_type"] = model.PermissionType

		return tx.Create(audit.ToDataModel(entry)).Error
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (r *PermissionRepository) ListFieldPermissionsByUser(ctx context.Context, userID int64) ([]*permission.FieldPermission, error) {
	var models []*permDatamodel.FieldPermission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entity_type ASC, field_name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return permission.FieldPermissionsFromModel(models), nil
}

// CopyToUser clones the source user's active permissions onto the target,
// skipping keys the target already holds. Each copied row gets its own grant
// audit entry, plus one summary entry for the copy; everything commits
// atomically. A copy that moves nothing writes no audit rows.
func (r *PermissionRepository) CopyToUser(ctx context.Context, sourceUserID, targetUserID, actorID int64, meta internal.RequestMeta) (int, error) {
	var copied int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sourceData []*permDatamodel.DataPermission
		if err := tx.Where("user_id = ?", sourceUserID).Find(&sourceData).Error; err != nil {
			return err
		}
		var sourceFields []*permDatamodel.FieldPermission
		if err := tx.Where("user_id = ?", sourceUserID).Find(&sourceFields).Error; err != nil {
			return err
		}

		var targetData []*permDatamodel.DataPermission
		if err := tx.Where("user_id = ?", targetUserID).Find(&targetData).Error; err != nil {
			return err
		}
		var targetFields []*permDatamodel.FieldPermission
		if err := tx.Where("user_id = ?", targetUserID).Find(&targetFields).Error; err != nil {
			return err
		}

		heldData := make(map[string]struct{}, len(targetData))
		for _, p := range targetData {
			heldData[p.EntityType] = struct{}{}
		}
		heldFields := make(map[string]struct{}, len(targetFields))
		for _, p := range targetFields {
			heldFields[p.EntityType+"|"+p.FieldName] = struct{}{}
		}

		now := time.Now()

		for _, src := range sourceData {
			if _, held := heldData[src.EntityType]; held {
				continue
			}
			clone := *src
			clone.ID = 0
			clone.UserID = targetUserID
			clone.CreatedBy = actorID
			clone.UpdatedBy = 0
			clone.CreatedAt = now
			clone.UpdatedAt = now
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}

			entry := audit.NewEntry(actorID, audit.OperationGrant, audit.TargetDataPermission).
				WithTargetUser(targetUserID).
				WithPermissionID(clone.ID).
				WithDetails(map[string]interface{}{
					"entity_type":      clone.EntityType,
					"scope_type":       clone.ScopeType,
					"copied_from_user": sourceUserID,
				}).
				WithRequestMeta(meta.IPAddress, meta.UserAgent)
			if err := tx.Create(audit.ToDataModel(entry)).Error; err != nil {
				return err
			}
			copied++
		}

		for _, src := range sourceFields {
			if _, held := heldFields[src.EntityType+"|"+src.FieldName]; held {
				continue
			}
			clone := *src
			clone.ID = 0
			clone.UserID = targetUserID
			clone.CreatedBy = actorID
			clone.UpdatedBy = 0
			clone.CreatedAt = now
			clone.UpdatedAt = now
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}

			entry := audit.NewEntry(actorID, audit.OperationGrant, audit.TargetFieldPermission).
				WithTargetUser(targetUserID).
				WithPermissionID(clone.ID).
				WithDetails(map[string]interface{}{
					"entity_type":      clone.EntityType,
					"field_name":       clone.FieldName,
					"permission_type":  clone.PermissionType,
					"copied_from_user": sourceUserID,
				}).
				WithRequestMeta(meta.IPAddress, meta.UserAgent)
			if err := tx.Create(audit.ToDataModel(entry)).Error; err != nil {
				return err
			}
			copied++
		}

		if copied == 0 {
			return nil
		}

		// One summary entry for the whole copy, alongside the per-row grants.
		summary := audit.NewEntry(actorID, audit.OperationGrant, audit.TargetUserPermission).
			WithTargetUser(targetUserID).
			WithDetails(map[string]interface{}{
				"copied_from_user": sourceUserID,
				"copied_count":     copied,
			}).
			WithRequestMeta(meta.IPAddress, meta.UserAgent)
		return tx.Create(audit.ToDataModel(summary)).Error
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}
