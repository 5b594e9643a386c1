package scoring

import (
	"ashare-quant/internal/entity"
	"ashare-quant/internal/indicator"
)

// NonTradableThreshold is the combined regime multiplier under which the
// market is declared non-tradable.
const NonTradableThreshold = 0.15

// Regime is the three-level market state derived from the proxy index.
type Regime struct {
	Trend       string  `json:"trend"`     // bull / sideways / bear
	Sentiment   string  `json:"sentiment"` // greedy / neutral / fear
	Signal      string  `json:"signal"`    // caution / normal / pause
	VolumeState string  `json:"volume"`    // active / normal / weak
	Multiplier  float64 `json:"multiplier"`
	Tradable    bool    `json:"tradable"`
}

// DetectRegime composes trend, sentiment, and volume confirmation into one
// multiplier in [0,1]. Variants consume the multiplier; none of them hard-veto
// on the regime alone.
func DetectRegime(bars []entity.DailyBar) (Regime, error) {
	w, err := indicator.Compute(bars)
	if err != nil {
		return Regime{}, err
	}

	r := Regime{Multiplier: 1.0}

	switch {
	case w.Close > w.MA20 && w.Close > w.MA60:
		r.Trend = "bull"
	case w.Close < w.MA20 && w.Close < w.MA60:
		r.Trend = "bear"
		r.Multiplier *= 0.2
	default:
		r.Trend = "sideways"
		r.Multiplier *= 0.5
	}

	vol := w.Volatility20 * 100
	skew := w.ReturnSkew(20)
	switch {
	case vol > 2.5 && skew < -0.3:
		r.Sentiment = "fear"
		r.Signal = "pause"
		r.Multiplier *= 0.3
	case vol > 2.0 && skew > 0.3:
		r.Sentiment = "greedy"
		r.Signal = "caution"
		r.Multiplier *= 0.7
	default:
		r.Sentiment = "neutral"
		r.Signal = "normal"
	}

	vol5 := w.MeanVol(5)
	vol20 := w.MeanVol(20)
	switch {
	case vol20 > 0 && vol5 > vol20*1.2:
		r.VolumeState = "active"
	case vol20 > 0 && vol5 < vol20*0.7:
		r.VolumeState = "weak"
		r.Multiplier *= 0.8
	default:
		r.VolumeState = "normal"
	}

	r.Tradable = r.Multiplier >= NonTradableThreshold
	return r, nil
}

// softMultiplier maps the raw regime multiplier onto the coarse steps the
// quant-evolution scorer applies.
func softMultiplier(m float64) float64 {
	switch {
	case m >= 0.9:
		return 1.0
	case m >= 0.5:
		return 0.8
	case m >= 0.25:
		return 0.5
	default:
		return 0.3
	}
}
