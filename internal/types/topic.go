package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TopicOrigin string

const (
	TopicOriginAI    TopicOrigin = "AI"
	TopicOriginUser  TopicOrigin = "USER"
	TopicOriginMixed TopicOrigin = "MIXED"
)

type SectionType string

const (
	SectionIntroduction SectionType = "introduction"
	SectionConcept      SectionType = "concept"
	SectionExample      SectionType = "example"
	SectionExercise     SectionType = "exercise"
	SectionApplication  SectionType = "application"
	SectionConclusion   SectionType = "conclusion"
	SectionReference    SectionType = "reference"
)

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSectionType maps a model-emitted label to a known section type.
// Spanish labels from the generation prompts are accepted alongside the
// canonical ones; anything unrecognized becomes a concept section.
func NormalizeSectionType(raw string) SectionType {
	switch SectionType(normalizeLower(raw)) {
	case SectionIntroduction, "introduccion":
		return SectionIntroduction
	case SectionConcept, "concepto":
		return SectionConcept
	case SectionExample, "ejemplo":
		return SectionExample
	case SectionExercise, "ejercicio":
		return SectionExercise
	case SectionApplication, "aplicacion":
		return SectionApplication
	case SectionConclusion:
		return SectionConclusion
	case SectionReference, "referencia":
		return SectionReference
	default:
		return SectionConcept
	}
}

// Section lives inside a topic's JSON outline, not in its own table.
type Section struct {
	ID          uuid.UUID   `json:"id"`
	SectionType SectionType `json:"section_type"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	OrderIndex  int         `json:"order_index"`
	Depth       int         `json:"depth"`
	Origin      TopicOrigin `json:"origin"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TopicOutline is append-only: sections are never removed or replaced, and
// every append bumps Version.
type TopicOutline struct {
	Sections    []Section `json:"sections"`
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Topic trees use parent-id adjacency; children are always queried, never
// embedded, so no in-memory cycle can form.
type Topic struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	NoteID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"note_id"`
	Note          *Note          `gorm:"constraint:OnDelete:CASCADE;foreignKey:NoteID;references:ID" json:"note,omitempty"`
	ParentTopicID *uuid.UUID     `gorm:"type:uuid;index" json:"parent_topic_id,omitempty"`
	Title         string         `gorm:"column:title;not null" json:"title"`
	Description   string         `gorm:"column:description" json:"description"`
	Body          string         `gorm:"column:body;type:text" json:"body"`
	Outline       datatypes.JSON `gorm:"column:outline;type:jsonb" json:"outline"`
	Depth         int            `gorm:"column:depth;not null;default:1" json:"depth"`
	Origin        TopicOrigin    `gorm:"column:origin;not null;default:AI" json:"origin"`
	OrderIndex    int            `gorm:"column:order_index;not null;default:0" json:"order_index"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Topic) TableName() string { return "topic" }

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// DecodeOutline returns the structured outline, or an empty version-1 outline
// when the column is unset.
func (t *Topic) DecodeOutline() (TopicOutline, error) {
	if len(t.Outline) == 0 {
		return TopicOutline{Sections: []Section{}, Version: 1, LastUpdated: t.UpdatedAt}, nil
	}
	var o TopicOutline
	if err := json.Unmarshal(t.Outline, &o); err != nil {
		return TopicOutline{}, err
	}
	if o.Sections == nil {
		o.Sections = []Section{}
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return o, nil
}

func (t *Topic) EncodeOutline(o TopicOutline) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	t.Outline = datatypes.JSON(raw)
	return nil
}
