package repos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// SimilarityMatch pairs an embedding row with its cosine distance to the
// query vector. Smaller distance means more similar.
type SimilarityMatch struct {
	Embedding *types.Embedding
	Distance  float64
}

type EmbeddingRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, embedding *types.Embedding) (*types.Embedding, error)
	GetByEntity(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, entityID uuid.UUID) (*types.Embedding, error)
	SearchSimilar(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, query pgvector.Vector, limit int, excludeIDs []uuid.UUID) ([]SimilarityMatch, error)
	DeleteByEntity(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, entityID uuid.UUID) error
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{
		db:  db,
		log: baseLog.With("repo", "EmbeddingRepo"),
	}
}

// Upsert replaces the row for (entity_kind, entity_id) so a rebuilt embedding
// never leaves a stale duplicate behind.
func (r *embeddingRepo) Upsert(ctx context.Context, tx *gorm.DB, embedding *types.Embedding) (*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_kind"}, {Name: "entity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_text", "vector", "model", "metadata", "updated_at",
			}),
		}).
		Create(embedding).Error
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

func (r *embeddingRepo) GetByEntity(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, entityID uuid.UUID) (*types.Embedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entityID == uuid.Nil {
		return nil, nil
	}
	var embedding types.Embedding
	err := transaction.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", entityKind, entityID).
		Limit(1).
		Find(&embedding).Error
	if err != nil {
		return nil, err
	}
	if embedding.ID == uuid.Nil {
		return nil, nil
	}
	return &embedding, nil
}

// SearchSimilar orders by the pgvector cosine distance operator, ascending.
func (r *embeddingRepo) SearchSimilar(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, query pgvector.Vector, limit int, excludeIDs []uuid.UUID) ([]SimilarityMatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 5
	}
	q := transaction.WithContext(ctx).
		Model(&types.Embedding{}).
		Select("*, (vector <=> ?) AS distance", query).
		Where("entity_kind = ?", entityKind)
	if len(excludeIDs) > 0 {
		q = q.Where("entity_id NOT IN ?", excludeIDs)
	}
	rows := []struct {
		types.Embedding
		Distance float64
	}{}
	err := q.Clauses(clause.OrderBy{
		Expression: clause.Expr{SQL: "vector <=> ?", Vars: []interface{}{query}},
	}).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]SimilarityMatch, 0, len(rows))
	for i := range rows {
		e := rows[i].Embedding
		out = append(out, SimilarityMatch{Embedding: &e, Distance: rows[i].Distance})
	}
	return out, nil
}

func (r *embeddingRepo) DeleteByEntity(ctx context.Context, tx *gorm.DB, entityKind types.EmbeddingEntity, entityID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entityID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", entityKind, entityID).
		Delete(&types.Embedding{}).Error
}
