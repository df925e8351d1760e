package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Answer records a user's response to a question inside a session. The
// composite unique index rejects a second answer to the same question by the
// same user within one session.
type Answer struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID     uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_answer_once,priority:1" json:"question_id"`
	Question       *Question     `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	UserID         uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_answer_once,priority:2" json:"user_id"`
	StudySessionID uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_answer_once,priority:3" json:"study_session_id"`
	StudySession   *StudySession `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudySessionID;references:ID" json:"study_session,omitempty"`
	SelectedIndex  *int          `gorm:"column:selected_index" json:"selected_index,omitempty"`
	Text           string        `gorm:"column:text;type:text" json:"text,omitempty"`
	Correct        bool          `gorm:"column:correct;not null;default:false" json:"correct"`
	Score          float64       `gorm:"column:score;not null;default:0" json:"score"`
	Feedback       string        `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Answer) TableName() string { return "answer" }

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
