package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EmbeddingEntity string

const (
	EmbeddingEntityTopic EmbeddingEntity = "TOPIC"
	EmbeddingEntityNote  EmbeddingEntity = "NOTE"
)

// Embedding holds one pgvector row per source entity. Rebuilding an entity's
// embedding replaces the existing row so similarity search never sees stale
// duplicates.
type Embedding struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EntityKind EmbeddingEntity `gorm:"column:entity_kind;not null;uniqueIndex:idx_embedding_entity,priority:1" json:"entity_kind"`
	EntityID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_embedding_entity,priority:2" json:"entity_id"`
	SourceText string          `gorm:"column:source_text;type:text;not null" json:"source_text"`
	Vector     pgvector.Vector `gorm:"column:vector;type:vector(768)" json:"-"`
	Model      string          `gorm:"column:model;not null" json:"model"`
	Metadata   datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Embedding) TableName() string { return "embedding" }

func (e *Embedding) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
