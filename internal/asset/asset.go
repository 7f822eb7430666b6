package asset

import (
	"context"
	"time"

	assetDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/asset"
	"github.com/frahmantamala/access-management/internal/permission"
)

type Asset struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	DepartmentID   *int64    `json:"department_id,omitempty"`
	CreatedBy      int64     `json:"created_by"`
	Name           string    `json:"name"`
	SerialNumber   string    `json:"serial_number,omitempty"`
	Status         string    `json:"status"`
	PurchaseAmount float64   `json:"purchase_amount"`
	CustodianName  string    `json:"custodian_name,omitempty"`
	CustodianPhone string    `json:"custodian_phone,omitempty"`
	CustodianEmail string    `json:"custodian_email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RepositoryAPI reads assets through a scope callback: the service narrows
// the query with the caller's permissions before it executes.
type RepositoryAPI interface {
	List(ctx context.Context, narrow func(permission.Query) permission.Query, limit, offset int) ([]*Asset, error)
	GetByID(ctx context.Context, id int64, narrow func(permission.Query) permission.Query) (*Asset, error)
}

// ToRecord flattens an asset into the map shape the mask engine works on.
func (a *Asset) ToRecord() map[string]interface{} {
	record := map[string]interface{}{
		"id":              a.ID,
		"organization_id": a.OrganizationID,
		"created_by":      a.CreatedBy,
		"name":            a.Name,
		"serial_number":   a.SerialNumber,
		"status":          a.Status,
		"purchase_amount": a.PurchaseAmount,
		"custodian_name":  a.CustodianName,
		"custodian_phone": a.CustodianPhone,
		"custodian_email": a.CustodianEmail,
		"created_at":      a.CreatedAt,
		"updated_at":      a.UpdatedAt,
	}
	if a.DepartmentID != nil {
		record["department_id"] = *a.DepartmentID
	}
	return record
}

func FromDataModel(m *assetDatamodel.Asset) *Asset {
	return &Asset{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		DepartmentID:   m.DepartmentID,
		CreatedBy:      m.CreatedBy,
		Name:           m.Name,
		SerialNumber:   m.SerialNumber,
		Status:         m.Status,
		PurchaseAmount: m.PurchaseAmount,
		CustodianName:  m.CustodianName,
		CustodianPhone: m.CustodianPhone,
		CustodianEmail: m.CustodianEmail,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func FromDataModelSlice(models []*assetDatamodel.Asset) []*Asset {
	result := make([]*Asset, len(models))
	for i, m := range models {
		result[i] = FromDataModel(m)
	}
	return result
}
