package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type AnswerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, answer *types.Answer) (*types.Answer, error)
	GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID, userID uuid.UUID) (*types.Answer, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Answer, error)
	ListIncorrectByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Answer, error)
	ListIncorrectByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID, quizID uuid.UUID, limit int) ([]*types.Answer, error)
	CountBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return &answerRepo{
		db:  db,
		log: baseLog.With("repo", "AnswerRepo"),
	}
}

func (r *answerRepo) Create(ctx context.Context, tx *gorm.DB, answer *types.Answer) (*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(answer).Error; err != nil {
		return nil, err
	}
	return answer, nil
}

func (r *answerRepo) GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID, userID uuid.UUID) (*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil || questionID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var answer types.Answer
	err := transaction.WithContext(ctx).
		Where("study_session_id = ? AND question_id = ? AND user_id = ?", sessionID, questionID, userID).
		Limit(1).
		Find(&answer).Error
	if err != nil {
		return nil, err
	}
	if answer.ID == uuid.Nil {
		return nil, nil
	}
	return &answer, nil
}

func (r *answerRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Answer
	if sessionID == uuid.Nil {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("study_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListIncorrectByUser preloads each answer's question so recommendation
// scoring can walk the quiz lineage without extra queries.
func (r *answerRepo) ListIncorrectByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Answer
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 30
	}
	err := transaction.WithContext(ctx).
		Preload("Question").
		Where("user_id = ? AND correct = ?", userID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerRepo) ListIncorrectByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID, quizID uuid.UUID, limit int) ([]*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Answer
	if userID == uuid.Nil || quizID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := transaction.WithContext(ctx).
		Preload("Question").
		Joins("JOIN question ON question.id = answer.question_id").
		Where("answer.user_id = ? AND answer.correct = ? AND question.quiz_id = ?", userID, false, quizID).
		Order("answer.created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerRepo) CountBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == uuid.Nil {
		return 0, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Where("study_session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
