package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type MediaAssetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, asset *types.MediaAsset) (*types.MediaAsset, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MediaAsset, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.MediaAsset, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.ProcessingStatus) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type mediaAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaAssetRepo(db *gorm.DB, baseLog *logger.Logger) MediaAssetRepo {
	return &mediaAssetRepo{
		db:  db,
		log: baseLog.With("repo", "MediaAssetRepo"),
	}
}

func (r *mediaAssetRepo) Create(ctx context.Context, tx *gorm.DB, asset *types.MediaAsset) (*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

func (r *mediaAssetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var asset types.MediaAsset
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&asset).Error
	if err != nil {
		return nil, err
	}
	if asset.ID == uuid.Nil {
		return nil, nil
	}
	return &asset, nil
}

func (r *mediaAssetRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MediaAsset
	if userID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.ProcessingStatus) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{"status": status})
}

func (r *mediaAssetRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.MediaAsset{}).
		Where("id = ?", id).
		Updates(updates).Error
}
