package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transcript rows are created empty by the media stage and filled in by the
// transcription stage. Reprocessing overwrites the text of the same row.
type Transcript struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	MediaAssetID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"media_asset_id"`
	MediaAsset      *MediaAsset      `gorm:"constraint:OnDelete:CASCADE;foreignKey:MediaAssetID;references:ID" json:"media_asset,omitempty"`
	Text            string           `gorm:"column:text;type:text" json:"text"`
	Language        string           `gorm:"column:language;not null;default:es" json:"language"`
	DurationSeconds *int             `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Status          ProcessingStatus `gorm:"column:status;not null;default:PENDING;index" json:"status"`
	CreatedAt       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Transcript) TableName() string { return "transcript" }

func (t *Transcript) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
