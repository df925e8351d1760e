package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionState string

const (
	SessionInProgress SessionState = "IN_PROGRESS"
	SessionCompleted  SessionState = "COMPLETED"
	SessionAbandoned  SessionState = "ABANDONED"
)

// StudySession tracks one attempt at a quiz. The quiz reference is nullable
// so a session survives its quiz's deletion. Counters and percentages are
// recomputed after every recorded answer; the session flips to COMPLETED
// exactly when every question has been answered.
type StudySession struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID               *uuid.UUID     `gorm:"type:uuid;index" json:"quiz_id,omitempty"`
	Quiz                 *Quiz          `gorm:"constraint:OnDelete:SET NULL;foreignKey:QuizID;references:ID" json:"quiz,omitempty"`
	UserID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	State                SessionState   `gorm:"column:state;not null;default:IN_PROGRESS" json:"state"`
	TotalQuestions       int            `gorm:"column:total_questions;not null;default:0" json:"total_questions"`
	AnsweredQuestions    int            `gorm:"column:answered_questions;not null;default:0" json:"answered_questions"`
	CorrectAnswers       int            `gorm:"column:correct_answers;not null;default:0" json:"correct_answers"`
	ProgressPercentage   float64        `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	EvaluationPercentage float64        `gorm:"column:evaluation_percentage;not null;default:0" json:"evaluation_percentage"`
	StartedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"started_at"`
	CompletedAt          *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StudySession) TableName() string { return "study_session" }

func (s *StudySession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
