package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	QuestionOpenEnded      QuestionKind = "OPEN_ENDED"
)

// Question stores multiple-choice options as a JSON string array. Open-ended
// questions leave Options and CorrectIndex empty and carry an expected answer
// used during evaluation.
type Question struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Quiz           *Quiz          `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuizID;references:ID" json:"quiz,omitempty"`
	Kind           QuestionKind   `gorm:"column:kind;not null" json:"kind"`
	Prompt         string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Options        datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`
	CorrectIndex   *int           `gorm:"column:correct_index" json:"correct_index,omitempty"`
	ExpectedAnswer string         `gorm:"column:expected_answer;type:text" json:"expected_answer,omitempty"`
	Explanation    string         `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	OrderIndex     int            `gorm:"column:order_index;not null;default:0" json:"order_index"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Question) TableName() string { return "question" }

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
