package repository

import (
	"context"

	"ashare-quant/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyBarRepository reads and writes per-stock daily bars.
type DailyBarRepository interface {
	BulkUpsert(ctx context.Context, bars []entity.DailyBar) (int64, error)
	GetHistory(ctx context.Context, tsCode string, days int) ([]entity.DailyBar, error)
	GetAllSince(ctx context.Context, tradeDate string) (map[string][]entity.DailyBar, error)
	RecentTradeDates(ctx context.Context, tsCode string, n int) ([]string, error)
	MaxTradeDate(ctx context.Context, tsCode string) (string, error)
}

type dailyBarRepository struct {
	db *gorm.DB
}

func NewDailyBarRepository(db *gorm.DB) DailyBarRepository {
	return &dailyBarRepository{db: db}
}

const upsertBatchSize = 500

// BulkUpsert writes bars in batches; re-applying the same batch leaves the
// table unchanged.
func (r *dailyBarRepository) BulkUpsert(ctx context.Context, bars []entity.DailyBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ts_code"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "pre_close", "vol", "amount", "pct_chg",
		}),
	}).CreateInBatches(bars, upsertBatchSize)
	return tx.RowsAffected, tx.Error
}

// GetHistory returns the last `days` bars for one stock, ascending by date.
func (r *dailyBarRepository) GetHistory(ctx context.Context, tsCode string, days int) ([]entity.DailyBar, error) {
	var bars []entity.DailyBar
	err := r.db.WithContext(ctx).
		Where("ts_code = ?", tsCode).
		Order("trade_date DESC").
		Limit(days).
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	reverse(bars)
	return bars, nil
}

// GetAllSince loads every bar on or after tradeDate, grouped by stock and
// sorted ascending within each stock.
func (r *dailyBarRepository) GetAllSince(ctx context.Context, tradeDate string) (map[string][]entity.DailyBar, error) {
	var bars []entity.DailyBar
	err := r.db.WithContext(ctx).
		Where("trade_date >= ?", tradeDate).
		Order("ts_code, trade_date ASC").
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string][]entity.DailyBar)
	for _, b := range bars {
		out[b.TsCode] = append(out[b.TsCode], b)
	}
	return out, nil
}

// RecentTradeDates returns the n most recent trade dates stored for tsCode,
// descending.
func (r *dailyBarRepository) RecentTradeDates(ctx context.Context, tsCode string, n int) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).
		Model(&entity.DailyBar{}).
		Where("ts_code = ?", tsCode).
		Order("trade_date DESC").
		Limit(n).
		Pluck("trade_date", &dates).Error
	return dates, err
}

// MaxTradeDate returns the most recent stored trade date for tsCode, or ""
// when no rows exist.
func (r *dailyBarRepository) MaxTradeDate(ctx context.Context, tsCode string) (string, error) {
	var date *string
	err := r.db.WithContext(ctx).
		Model(&entity.DailyBar{}).
		Where("ts_code = ?", tsCode).
		Select("MAX(trade_date)").
		Scan(&date).Error
	if err != nil || date == nil {
		return "", err
	}
	return *date, nil
}

func reverse(bars []entity.DailyBar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
