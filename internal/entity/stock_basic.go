package entity

import "strings"

// StockBasic is the per-stock reference row. Refreshed in place.
type StockBasic struct {
	TsCode   string  `gorm:"column:ts_code;primaryKey"`
	Name     string  `gorm:"column:name"`
	Industry string  `gorm:"column:industry"`
	Market   string  `gorm:"column:market"`
	CircMv   float64 `gorm:"column:circ_mv"`
	TotalMv  float64 `gorm:"column:total_mv"`
	IsST     bool    `gorm:"column:is_st"`
}

func (StockBasic) TableName() string {
	return "stock_basic"
}

// STFromName reports whether a display name carries the special-treatment
// prefix. Used at ingestion to set IsST, and as a fallback for legacy rows
// written before the flag existed.
func STFromName(name string) bool {
	return strings.HasPrefix(name, "ST") || strings.HasPrefix(name, "*ST")
}
