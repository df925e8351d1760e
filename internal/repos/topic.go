package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type TopicRepo interface {
	Create(ctx context.Context, tx *gorm.DB, topics []*types.Topic) ([]*types.Topic, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Topic, error)
	ListByNote(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.Topic, error)
	ListChildren(ctx context.Context, tx *gorm.DB, parentTopicID uuid.UUID) ([]*types.Topic, error)
	ListByNotes(ctx context.Context, tx *gorm.DB, noteIDs []uuid.UUID) ([]*types.Topic, error)
	CountByNote(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return &topicRepo{
		db:  db,
		log: baseLog.With("repo", "TopicRepo"),
	}
}

func (r *topicRepo) Create(ctx context.Context, tx *gorm.DB, topics []*types.Topic) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(topics) == 0 {
		return []*types.Topic{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

func (r *topicRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var topic types.Topic
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&topic).Error
	if err != nil {
		return nil, err
	}
	if topic.ID == uuid.Nil {
		return nil, nil
	}
	return &topic, nil
}

func (r *topicRepo) ListByNote(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Topic
	if noteID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("order_index ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) ListChildren(ctx context.Context, tx *gorm.DB, parentTopicID uuid.UUID) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Topic
	if parentTopicID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("parent_topic_id = ?", parentTopicID).
		Order("order_index ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) ListByNotes(ctx context.Context, tx *gorm.DB, noteIDs []uuid.UUID) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Topic
	if len(noteIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("note_id IN ?", noteIDs).
		Order("order_index ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicRepo) CountByNote(ctx context.Context, tx *gorm.DB, noteID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if noteID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Topic{}).
		Where("note_id = ?", noteID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *topicRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Topic{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *topicRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Topic{}).Error
}
