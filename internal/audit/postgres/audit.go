package postgres

import (
	"context"

	"github.com/frahmantamala/access-management/internal/audit"
	auditDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

// AuditRepository is insert-and-select only. There is deliberately no update
// or delete path for permission_audit_logs.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *auditDatamodel.PermissionAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) List(ctx context.Context, q audit.Query) ([]*auditDatamodel.PermissionAuditLog, error) {
	query := r.db.WithContext(ctx).Model(&auditDatamodel.PermissionAuditLog{})

	if q.ActorID != 0 {
		query = query.Where("actor_id = ?", q.ActorID)
	}
	if q.TargetUserID != 0 {
		query = query.Where("target_user_id = ?", q.TargetUserID)
	}
	if q.Operation != "" {
		query = query.Where("operation_type = ?", string(q.Operation))
	}
	if q.TargetType != "" {
		query = query.Where("target_type = ?", string(q.TargetType))
	}
	if q.PermissionID != 0 {
		query = query.Where("permission_id = ?", q.PermissionID)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		query = query.Where("created_at <= ?", q.Until)
	}

	var entries []*auditDatamodel.PermissionAuditLog
	err := query.
		Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&entries).Error
	return entries, err
}
