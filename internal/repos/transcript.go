package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type TranscriptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, transcript *types.Transcript) (*types.Transcript, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transcript, error)
	GetByMediaAsset(ctx context.Context, tx *gorm.DB, mediaAssetID uuid.UUID) (*types.Transcript, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type transcriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return &transcriptRepo{
		db:  db,
		log: baseLog.With("repo", "TranscriptRepo"),
	}
}

func (r *transcriptRepo) Create(ctx context.Context, tx *gorm.DB, transcript *types.Transcript) (*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(transcript).Error; err != nil {
		return nil, err
	}
	return transcript, nil
}

func (r *transcriptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var transcript types.Transcript
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&transcript).Error
	if err != nil {
		return nil, err
	}
	if transcript.ID == uuid.Nil {
		return nil, nil
	}
	return &transcript, nil
}

func (r *transcriptRepo) GetByMediaAsset(ctx context.Context, tx *gorm.DB, mediaAssetID uuid.UUID) (*types.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if mediaAssetID == uuid.Nil {
		return nil, nil
	}
	var transcript types.Transcript
	err := transaction.WithContext(ctx).
		Where("media_asset_id = ?", mediaAssetID).
		Order("created_at DESC").
		Limit(1).
		Find(&transcript).Error
	if err != nil {
		return nil, err
	}
	if transcript.ID == uuid.Nil {
		return nil, nil
	}
	return &transcript, nil
}

func (r *transcriptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Transcript{}).
		Where("id = ?", id).
		Updates(updates).Error
}
