package repository

import (
	"context"

	"ashare-quant/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FlowRepository stores the external fund-flow series. All of these are
// optional inputs: scoring degrades gracefully when tables are empty.
type FlowRepository interface {
	UpsertNorthbound(ctx context.Context, rows []entity.NorthboundFlow) error
	UpsertMargin(ctx context.Context, rows []entity.MarginSummary) error
	UpsertFundPortfolio(ctx context.Context, rows []entity.FundPortfolioCache) error
	GetNorthbound(ctx context.Context, tradeDate string) (*entity.NorthboundFlow, error)
	GetFundHoldings(ctx context.Context, tsCode string) ([]entity.FundPortfolioCache, error)
}

type flowRepository struct {
	db *gorm.DB
}

func NewFlowRepository(db *gorm.DB) FlowRepository {
	return &flowRepository{db: db}
}

func (r *flowRepository) UpsertNorthbound(ctx context.Context, rows []entity.NorthboundFlow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"north_money", "south_money", "gg_net", "hg_net", "sg_net",
		}),
	}).CreateInBatches(rows, upsertBatchSize).Error
}

func (r *flowRepository) UpsertMargin(ctx context.Context, rows []entity.MarginSummary) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"rzye", "rqye", "rzrqye"}),
	}).CreateInBatches(rows, upsertBatchSize).Error
}

func (r *flowRepository) UpsertFundPortfolio(ctx context.Context, rows []entity.FundPortfolioCache) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}, {Name: "end_date"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mkt_value", "stk_mkt_value", "hold_ratio",
		}),
	}).CreateInBatches(rows, upsertBatchSize).Error
}

func (r *flowRepository) GetNorthbound(ctx context.Context, tradeDate string) (*entity.NorthboundFlow, error) {
	var row entity.NorthboundFlow
	err := r.db.WithContext(ctx).Where("trade_date = ?", tradeDate).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *flowRepository) GetFundHoldings(ctx context.Context, tsCode string) ([]entity.FundPortfolioCache, error) {
	var rows []entity.FundPortfolioCache
	err := r.db.WithContext(ctx).Where("symbol = ?", tsCode).Find(&rows).Error
	return rows, err
}
