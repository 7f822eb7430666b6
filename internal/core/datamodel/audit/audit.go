package audit

import "time"

// PermissionAuditLog is append-only: rows are inserted exactly once per
// permission mutation or logged check and never updated or deleted. The
// permission reference (target_type + permission_id) is weak; the referenced
// permission row may be hard-deleted later while its audit trail survives.
type PermissionAuditLog struct {
	ID                string    `gorm:"primaryKey;size:26"`
	ActorID           int64     `gorm:"column:actor_id;not null;index"`
	TargetUserID      *int64    `gorm:"column:target_user_id;index"`
	OperationType     string    `gorm:"column:operation_type;size:20;not null;index"`
	TargetType        string    `gorm:"column:target_type;size:30;not null"`
	PermissionID      *int64    `gorm:"column:permission_id;index"`
	PermissionDetails string    `gorm:"column:permission_details;type:jsonb"`
	Result            string    `gorm:"column:result;size:10;not null"`
	ErrorMessage      string    `gorm:"column:error_message"`
	IPAddress         string    `gorm:"column:ip_address;size:45"`
	UserAgent         string    `gorm:"column:user_agent;size:255"`
	CreatedAt         time.Time `gorm:"column:created_at;index"`
}

func (PermissionAuditLog) TableName() string {
	return "permission_audit_logs"
}
