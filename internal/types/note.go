package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteKind string

const (
	NoteKindSummary     NoteKind = "SUMMARY"
	NoteKindExplanation NoteKind = "EXPLANATION"
	NoteKindConceptMap  NoteKind = "CONCEPT_MAP"
	NoteKindFlashcard   NoteKind = "FLASHCARD"
)

// Note is a generated study artifact. At most one COMPLETED note exists per
// (transcript, kind) pair except flashcards, which are one row per card.
// A COMPLETED note is never overwritten; failed generations persist as ERROR
// rows so the failure stays visible in the store.
type Note struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	TranscriptID uuid.UUID        `gorm:"type:uuid;not null;index" json:"transcript_id"`
	Transcript   *Transcript      `gorm:"constraint:OnDelete:CASCADE;foreignKey:TranscriptID;references:ID" json:"transcript,omitempty"`
	UserID       uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	Kind         NoteKind         `gorm:"column:kind;not null;index" json:"kind"`
	Title        string           `gorm:"column:title" json:"title"`
	Body         string           `gorm:"column:body;type:text" json:"body"`
	Status       ProcessingStatus `gorm:"column:status;not null;default:PENDING;index" json:"status"`
	Error        string           `gorm:"column:error" json:"error,omitempty"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Note) TableName() string { return "note" }

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
