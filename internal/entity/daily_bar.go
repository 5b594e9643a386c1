package entity

// DailyBar is one day of trading data for one stock. Rows are written once by
// ingestion and never mutated.
type DailyBar struct {
	TsCode    string  `gorm:"column:ts_code;primaryKey"`
	TradeDate string  `gorm:"column:trade_date;primaryKey"` // YYYYMMDD
	Open      float64 `gorm:"column:open"`
	High      float64 `gorm:"column:high"`
	Low       float64 `gorm:"column:low"`
	Close     float64 `gorm:"column:close"`
	PreClose  float64 `gorm:"column:pre_close"`
	Vol       float64 `gorm:"column:vol"`
	Amount    float64 `gorm:"column:amount"`
	PctChg    float64 `gorm:"column:pct_chg"`
}

func (DailyBar) TableName() string {
	return "daily_trading_data"
}
