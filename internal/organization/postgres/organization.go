package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/access-management/internal"
	orgDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/organization"
	"github.com/frahmantamala/access-management/internal/organization"
	"gorm.io/gorm"
)

// OrganizationRepository implements organization.RepositoryAPI using GORM.
// All queries are reads; this service never mutates org data.
type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) organization.RepositoryAPI {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) GetDepartment(ctx context.Context, id int64) (*organization.Department, error) {
	var dept orgDatamodel.Department
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dept).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrDepartmentNotFound
		}
		return nil, err
	}
	return organization.FromDataModel(&dept), nil
}

func (r *OrganizationRepository) ChildrenOf(ctx context.Context, departmentID int64) ([]*organization.Department, error) {
	var departments []*orgDatamodel.Department
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", departmentID).
		Find(&departments).Error
	if err != nil {
		return nil, err
	}
	return organization.FromDataModelSlice(departments), nil
}

func (r *OrganizationRepository) DepartmentsLedBy(ctx context.Context, userID int64) ([]*organization.Department, error) {
	var departments []*orgDatamodel.Department
	err := r.db.WithContext(ctx).
		Where("leader_id = ?", userID).
		Find(&departments).Error
	if err != nil {
		return nil, err
	}
	return organization.FromDataModelSlice(departments), nil
}

func (r *OrganizationRepository) PrimaryDepartmentOf(ctx context.Context, userID int64) (*int64, error) {
	var user orgDatamodel.User
	err := r.db.WithContext(ctx).
		Select("department_id").
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.DepartmentID, nil
}
