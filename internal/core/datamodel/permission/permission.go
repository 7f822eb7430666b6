package permission

import (
	"time"

	"gorm.io/gorm"
)

// DataPermission is one row-level grant: at most one non-deleted row per
// (user_id, entity_type). Revoke is a soft delete so the audit trail can keep
// referencing the row.
type DataPermission struct {
	ID              int64          `gorm:"primaryKey"`
	UserID          int64          `gorm:"column:user_id;not null;index:idx_data_perm_key"`
	EntityType      string         `gorm:"column:entity_type;size:64;not null;index:idx_data_perm_key"`
	ScopeType       string         `gorm:"column:scope_type;size:40;not null"`
	ScopeValue      string         `gorm:"column:scope_value;type:jsonb"`
	DepartmentField string         `gorm:"column:department_field;size:64;not null;default:department_id"`
	UserField       string         `gorm:"column:user_field;size:64;not null;default:created_by"`
	Description     string         `gorm:"column:description"`
	CreatedBy       int64          `gorm:"column:created_by;not null"`
	UpdatedBy       int64          `gorm:"column:updated_by"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (DataPermission) TableName() string {
	return "data_permissions"
}

// FieldPermission is one field-level rule: at most one non-deleted row per
// (user_id, entity_type, field_name). Higher priority wins on lookup.
type FieldPermission struct {
	ID             int64          `gorm:"primaryKey"`
	UserID         int64          `gorm:"column:user_id;not null;index:idx_field_perm_key"`
	EntityType     string         `gorm:"column:entity_type;size:64;not null;index:idx_field_perm_key"`
	FieldName      string         `gorm:"column:field_name;size:64;not null;index:idx_field_perm_key"`
	PermissionType string         `gorm:"column:permission_type;size:20;not null"`
	MaskRule       string         `gorm:"column:mask_rule;size:40"`
	MaskPattern    string         `gorm:"column:mask_pattern"`
	Condition      string         `gorm:"column:condition;type:jsonb"`
	Priority       int            `gorm:"column:priority;not null;default:0"`
	Description    string         `gorm:"column:description"`
	CreatedBy      int64          `gorm:"column:created_by;not null"`
	UpdatedBy      int64          `gorm:"column:updated_by"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (FieldPermission) TableName() string {
	return "field_permissions"
}
