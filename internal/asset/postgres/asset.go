package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/access-management/internal/asset"
	assetDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/asset"
	"github.com/frahmantamala/access-management/internal/permission"
)

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) asset.RepositoryAPI {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) List(ctx context.Context, narrow func(permission.Query) permission.Query, limit, offset int) ([]*asset.Asset, error) {
	base := r.db.WithContext(ctx).Model(&assetDatamodel.Asset{})
	scoped := narrow(permission.NewGormQuery(base))

	gq, ok := scoped.(permission.GormQuery)
	if !ok {
		return nil, errors.New("scope filter produced a foreign query type")
	}

	var models []*assetDatamodel.Asset
	err := gq.Unwrap().
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return asset.FromDataModelSlice(models), nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id int64, narrow func(permission.Query) permission.Query) (*asset.Asset, error) {
	base := r.db.WithContext(ctx).Model(&assetDatamodel.Asset{}).Where("id = ?", id)
	scoped := narrow(permission.NewGormQuery(base))

	gq, ok := scoped.(permission.GormQuery)
	if !ok {
		return nil, errors.New("scope filter produced a foreign query type")
	}

	var model assetDatamodel.Asset
	err := gq.Unwrap().First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return asset.FromDataModel(&model), nil
}
