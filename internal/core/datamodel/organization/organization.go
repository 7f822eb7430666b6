package organization

import "time"

// Department is a node in the per-organization department tree. Rows are owned
// by the organization subsystem; this service only ever reads them.
type Department struct {
	ID             int64     `gorm:"primaryKey"`
	OrganizationID int64     `gorm:"column:organization_id;not null;index"`
	ParentID       *int64    `gorm:"column:parent_id;index"`
	LeaderID       *int64    `gorm:"column:leader_id;index"`
	Name           string    `gorm:"column:name;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (Department) TableName() string {
	return "departments"
}

// User mirrors the identity subsystem's users table. Only the columns this
// service reads are mapped; password_hash is consumed by the auth package.
type User struct {
	ID             int64     `gorm:"primaryKey"`
	OrganizationID int64     `gorm:"column:organization_id;not null;index"`
	DepartmentID   *int64    `gorm:"column:department_id;index"`
	Email          string    `gorm:"column:email;uniqueIndex;not null"`
	Name           string    `gorm:"column:name;not null"`
	PasswordHash   string    `gorm:"column:password_hash;not null"`
	IsSuperuser    bool      `gorm:"column:is_superuser;default:false"`
	IsActive       bool      `gorm:"column:is_active;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
