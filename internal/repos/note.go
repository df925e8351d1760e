package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type NoteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, note *types.Note) (*types.Note, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Note, error)
	GetByTranscriptAndKind(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID, kind types.NoteKind) (*types.Note, error)
	ListByTranscript(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]*types.Note, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Note, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	return &noteRepo{
		db:  db,
		log: baseLog.With("repo", "NoteRepo"),
	}
}

func (r *noteRepo) Create(ctx context.Context, tx *gorm.DB, note *types.Note) (*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

func (r *noteRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var note types.Note
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == uuid.Nil {
		return nil, nil
	}
	return &note, nil
}

func (r *noteRepo) GetByTranscriptAndKind(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID, kind types.NoteKind) (*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if transcriptID == uuid.Nil {
		return nil, nil
	}
	var note types.Note
	err := transaction.WithContext(ctx).
		Where("transcript_id = ? AND kind = ?", transcriptID, kind).
		Order("created_at DESC").
		Limit(1).
		Find(&note).Error
	if err != nil {
		return nil, err
	}
	if note.ID == uuid.Nil {
		return nil, nil
	}
	return &note, nil
}

func (r *noteRepo) ListByTranscript(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Note
	if transcriptID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("transcript_id = ?", transcriptID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *noteRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Note, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Note
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

func (r *noteRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Note{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *noteRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Note{}).Error
}
