package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/access-management/internal/auth"
	orgDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/organization"
)

type AuthRepository struct {
	db *gorm.DB
}

func NewAuthRepository(db *gorm.DB) auth.RepositoryAPI {
	return &AuthRepository{db: db}
}

func (r *AuthRepository) GetCredentials(ctx context.Context, email string) (*auth.User, string, error) {
	var model orgDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errors.New("user not found")
		}
		return nil, "", err
	}
	return userFromModel(&model), model.PasswordHash, nil
}

func (r *AuthRepository) GetUser(ctx context.Context, userID int64) (*auth.User, error) {
	var model orgDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return userFromModel(&model), nil
}

func userFromModel(m *orgDatamodel.User) *auth.User {
	return &auth.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		DepartmentID: m.DepartmentID,
		IsSuperuser:  m.IsSuperuser,
		IsActive:     m.IsActive,
	}
}
