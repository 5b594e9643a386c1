package repository

import (
	"context"
	"sync"

	"ashare-quant/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketValue is a circulating/total market value snapshot for one stock.
type MarketValue struct {
	CircMv  float64
	TotalMv float64
}

// StockBasicRepository reads and writes per-stock reference rows.
type StockBasicRepository interface {
	UpsertAll(ctx context.Context, stocks []entity.StockBasic) error
	GetAll(ctx context.Context) ([]entity.StockBasic, error)
	UpdateMarketValues(ctx context.Context, values map[string]MarketValue) (int, error)
}

type stockBasicRepository struct {
	db *gorm.DB

	ensureOnce sync.Once
	ensureErr  error
}

func NewStockBasicRepository(db *gorm.DB) StockBasicRepository {
	return &stockBasicRepository{db: db}
}

func (r *stockBasicRepository) UpsertAll(ctx context.Context, stocks []entity.StockBasic) error {
	if len(stocks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "industry", "market", "is_st",
		}),
	}).CreateInBatches(stocks, upsertBatchSize).Error
}

func (r *stockBasicRepository) GetAll(ctx context.Context) ([]entity.StockBasic, error) {
	var stocks []entity.StockBasic
	if err := r.db.WithContext(ctx).Find(&stocks).Error; err != nil {
		return nil, err
	}
	// Legacy rows written before the is_st column existed carry the flag only
	// in the display name.
	for i := range stocks {
		if !stocks[i].IsST && entity.STFromName(stocks[i].Name) {
			stocks[i].IsST = true
		}
	}
	return stocks, nil
}

// UpdateMarketValues writes the latest market value snapshot onto existing
// reference rows. The circ_mv/total_mv columns are added on first use when an
// older database predates them.
func (r *stockBasicRepository) UpdateMarketValues(ctx context.Context, values map[string]MarketValue) (int, error) {
	if err := r.ensureValueColumns(); err != nil {
		return 0, err
	}
	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for tsCode, mv := range values {
			res := tx.Model(&entity.StockBasic{}).
				Where("ts_code = ?", tsCode).
				Updates(map[string]interface{}{"circ_mv": mv.CircMv, "total_mv": mv.TotalMv})
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	return updated, err
}

func (r *stockBasicRepository) ensureValueColumns() error {
	r.ensureOnce.Do(func() {
		m := r.db.Migrator()
		for _, col := range []string{"circ_mv", "total_mv"} {
			if m.HasColumn(&entity.StockBasic{}, col) {
				continue
			}
			if err := m.AddColumn(&entity.StockBasic{}, col); err != nil {
				r.ensureErr = err
				return
			}
		}
	})
	return r.ensureErr
}
