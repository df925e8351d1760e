package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuizKind string

const (
	QuizMultipleChoice QuizKind = "MULTIPLE_CHOICE"
	QuizOpenEnded      QuizKind = "OPEN_ENDED"
	QuizMixed          QuizKind = "MIXED"
)

type QuizDifficulty string

const (
	DifficultyEasy   QuizDifficulty = "EASY"
	DifficultyMedium QuizDifficulty = "MEDIUM"
	DifficultyHard   QuizDifficulty = "HARD"
)

type Quiz struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	NoteID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"note_id"`
	Note        *Note          `gorm:"constraint:OnDelete:CASCADE;foreignKey:NoteID;references:ID" json:"note,omitempty"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Kind        QuizKind       `gorm:"column:kind;not null" json:"kind"`
	Difficulty  QuizDifficulty `gorm:"column:difficulty;not null" json:"difficulty"`
	Status      ProcessingStatus `gorm:"column:status;not null;default:PENDING" json:"status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Questions   []Question     `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string { return "quiz" }

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
