package scoring

// Config bundles the per-variant tuning knobs. A nil Config on Input means
// DefaultConfig.
type Config struct {
	V3 V3Config
	V4 V4Config
	V6 V6Config
	V8 V8Config
}

// V3Config tunes the startup scorer.
type V3Config struct {
	// MinDailyAmount is the 5-day mean turnover (千元) under which the
	// illiquidity penalty applies.
	MinDailyAmount float64
	// BrewingThreshold bounds |DIF-DEA| relative to |DIF| for the
	// "converging below zero" MACD state.
	BrewingThreshold float64
}

// V4Config tunes the lurking scorer.
type V4Config struct {
	BrewingThreshold float64
}

// V6Config tunes the sniper scorer's mandatory gate.
type V6Config struct {
	MinSectorChange3d   float64 // hard fail below this
	MinMoneyFlowNet     float64 // 万元
	MinStockChange3d    float64
	MaxPricePosition    float64
	MaxPricePositionHot float64 // for stocks with >=3 limit-ups in 20d
	MinVolumeRatio      float64
}

// V8Config tunes the quant-evolution scorer. The smart-money thresholds were
// hand-picked against one market cycle; they live here so a run can override
// them.
type V8Config struct {
	SmartMoneyWindow     int
	SmartMoneyMinRisePct float64
	SmartMoneyMaxRisePct float64
	SmartMoneyMaxVolGrow float64
	SmartMoneyVolShrink  float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		V3: V3Config{
			MinDailyAmount:   30000, // 3000万
			BrewingThreshold: 0.1,
		},
		V4: V4Config{
			BrewingThreshold: 0.2,
		},
		V6: V6Config{
			MinSectorChange3d:   -3,
			MinMoneyFlowNet:     -5000,
			MinStockChange3d:    -5,
			MaxPricePosition:    0.85,
			MaxPricePositionHot: 0.90,
			MinVolumeRatio:      0.5,
		},
		V8: V8Config{
			SmartMoneyWindow:     30,
			SmartMoneyMinRisePct: 3,
			SmartMoneyMaxRisePct: 25,
			SmartMoneyMaxVolGrow: 1.1,
			SmartMoneyVolShrink:  0.9,
		},
	}
}

func (in Input) config() *Config {
	if in.Config != nil {
		return in.Config
	}
	return DefaultConfig()
}
