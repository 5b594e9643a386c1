package repository

import (
	"context"

	"ashare-quant/internal/entity"

	"gorm.io/gorm"
)

// EvolutionRepository appends grid-search results to the run history tables.
// All three tables are append-only; the newest run_at per strategy is the
// "latest" record.
type EvolutionRepository interface {
	AppendBest(ctx context.Context, row *entity.EvolutionBestParam) error
	AppendHistory(ctx context.Context, rows []entity.EvolutionRunHistory) error
	AppendAIBest(ctx context.Context, row *entity.EvolutionAIBest) error
	LatestBest(ctx context.Context, strategy string) (*entity.EvolutionBestParam, error)
}

type evolutionRepository struct {
	db *gorm.DB
}

func NewEvolutionRepository(db *gorm.DB) EvolutionRepository {
	return &evolutionRepository{db: db}
}

func (r *evolutionRepository) AppendBest(ctx context.Context, row *entity.EvolutionBestParam) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *evolutionRepository) AppendHistory(ctx context.Context, rows []entity.EvolutionRunHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, upsertBatchSize).Error
}

func (r *evolutionRepository) AppendAIBest(ctx context.Context, row *entity.EvolutionAIBest) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *evolutionRepository) LatestBest(ctx context.Context, strategy string) (*entity.EvolutionBestParam, error) {
	var row entity.EvolutionBestParam
	err := r.db.WithContext(ctx).
		Where("strategy = ?", strategy).
		Order("run_at DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
