package entity

// NorthboundFlow is the daily stock-connect flow summary.
type NorthboundFlow struct {
	TradeDate  string  `gorm:"column:trade_date;primaryKey"`
	NorthMoney float64 `gorm:"column:north_money"`
	SouthMoney float64 `gorm:"column:south_money"`
	GgNet      float64 `gorm:"column:gg_net"`
	HgNet      float64 `gorm:"column:hg_net"`
	SgNet      float64 `gorm:"column:sg_net"`
}

func (NorthboundFlow) TableName() string {
	return "northbound_flow"
}

// MarginSummary is the daily market-wide margin balance snapshot.
type MarginSummary struct {
	TradeDate string  `gorm:"column:trade_date;primaryKey"`
	Rzye      float64 `gorm:"column:rzye"`
	Rqye      float64 `gorm:"column:rqye"`
	Rzrqye    float64 `gorm:"column:rzrqye"`
}

func (MarginSummary) TableName() string {
	return "margin_summary"
}

// FundPortfolioCache is one fund's reported position in one stock for one
// reporting period.
type FundPortfolioCache struct {
	TsCode      string  `gorm:"column:ts_code;primaryKey"`
	EndDate     string  `gorm:"column:end_date;primaryKey"`
	Symbol      string  `gorm:"column:symbol;primaryKey"`
	MktValue    float64 `gorm:"column:mkt_value"`
	StkMktValue float64 `gorm:"column:stk_mkt_value"`
	HoldRatio   float64 `gorm:"column:hold_ratio"`
}

func (FundPortfolioCache) TableName() string {
	return "fund_portfolio_cache"
}
