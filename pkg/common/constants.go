package common

const (
	// TradeDateLayout is the provider's trade date format (YYYYMMDD).
	TradeDateLayout = "20060102"

	// MarketProxyCode is the index used for regime detection and freshness checks.
	MarketProxyCode = "000001.SH"

	// MinHistoryBars is the minimum window length any scorer accepts.
	MinHistoryBars = 60
)

// Scorer variant names.
const (
	VariantV3 = "V3"
	VariantV4 = "V4"
	VariantV6 = "V6"
	VariantV7 = "V7"
	VariantV8 = "V8"
)

// Exit reasons recorded on simulated trades.
const (
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
	ExitTime       = "time_exit"
)
