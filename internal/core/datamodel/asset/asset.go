package asset

import (
	"time"

	"gorm.io/gorm"
)

// Asset is a representative protected record. department_id and created_by
// are the columns row scopes filter on; the contact and amount columns are
// the usual targets for field rules.
type Asset struct {
	ID             int64          `gorm:"primaryKey"`
	OrganizationID int64          `gorm:"column:organization_id;not null;index"`
	DepartmentID   *int64         `gorm:"column:department_id;index"`
	CreatedBy      int64          `gorm:"column:created_by;not null;index"`
	Name           string         `gorm:"column:name;not null"`
	SerialNumber   string         `gorm:"column:serial_number;size:64"`
	Status         string         `gorm:"column:status;size:20;default:'in_use'"`
	PurchaseAmount float64        `gorm:"column:purchase_amount"`
	CustodianName  string         `gorm:"column:custodian_name"`
	CustodianPhone string         `gorm:"column:custodian_phone;size:20"`
	CustodianEmail string         `gorm:"column:custodian_email"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Asset) TableName() string {
	return "assets"
}
