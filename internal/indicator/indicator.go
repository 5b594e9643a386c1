package indicator

import (
	"errors"
	"math"

	"ashare-quant/internal/entity"
)

// ErrInsufficientHistory is returned when fewer than MinBars bars are supplied.
var ErrInsufficientHistory = errors.New("indicator: insufficient history")

// MinBars is the shortest window any indicator set is computed from.
const MinBars = 60

// LimitThreshold is the daily change treated as a limit move.
const LimitThreshold = 9.5

// Window is the full indicator set over one stock's bar window. It is rebuilt
// on every evaluation and holds no shared state, so concurrent use across
// stocks is safe.
type Window struct {
	Bars []entity.DailyBar

	Close float64

	MA5, MA10, MA20, MA60 float64

	EMA12, EMA26 float64

	// MACD series are aligned 1:1 with Bars.
	DIF, DEA, Hist []float64

	ATR14 float64
	RSI14 float64

	K, D, J float64

	BollMid, BollUpper, BollLower float64

	VolumeRatio   float64
	PricePosition float64
	Volatility20  float64
	Drawdown60    float64

	High60, Low60 float64
}

// Compute builds the indicator window from bars sorted ascending by date.
func Compute(bars []entity.DailyBar) (*Window, error) {
	if len(bars) < MinBars {
		return nil, ErrInsufficientHistory
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	w := &Window{
		Bars:  bars,
		Close: closes[len(closes)-1],
		MA5:   MA(closes, 5),
		MA10:  MA(closes, 10),
		MA20:  MA(closes, 20),
		MA60:  MA(closes, 60),
	}

	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	w.EMA12 = ema12[len(ema12)-1]
	w.EMA26 = ema26[len(ema26)-1]

	w.DIF = make([]float64, len(closes))
	for i := range closes {
		w.DIF[i] = ema12[i] - ema26[i]
	}
	w.DEA = EMA(w.DIF, 9)
	w.Hist = make([]float64, len(closes))
	for i := range closes {
		w.Hist[i] = w.DIF[i] - w.DEA[i]
	}

	w.ATR14 = atr(bars, 14)
	w.RSI14 = rsi(closes, 14)
	w.K, w.D, w.J = kdj(bars, 9)
	w.BollMid, w.BollUpper, w.BollLower = bollinger(closes, 20, 2)
	w.VolumeRatio = volumeRatio(bars)
	w.Volatility20 = volatility(bars, 20)
	w.Drawdown60 = maxDrawdown(closes, 60)

	w.High60, w.Low60 = rangeOf(closes, 60)
	if w.High60 > w.Low60 {
		w.PricePosition = clamp01((w.Close - w.Low60) / (w.High60 - w.Low60))
	} else {
		w.PricePosition = 0.5
	}

	return w, nil
}

// MA is the simple mean of the last n values; 0 when fewer than n values.
func MA(values []float64, n int) float64 {
	if len(values) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// MAAt is the n-day mean ending offset bars before the last value.
func MAAt(values []float64, n, offset int) float64 {
	if len(values) < n+offset {
		return 0
	}
	return MA(values[:len(values)-offset], n)
}

// EMA returns the full exponential moving average series with alpha = 2/(n+1),
// seeded from the first value.
func EMA(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func atr(bars []entity.DailyBar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for i := start; i < len(bars); i++ {
		b := bars[i]
		tr := b.High - b.Low
		if i > 0 {
			prevClose := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		}
		sum += tr
		count++
	}
	return sum / float64(count)
}

func rsi(closes []float64, n int) float64 {
	if len(closes) < n+1 {
		return 50
	}
	var gain, loss float64
	for i := len(closes) - n; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gain += diff
		} else {
			loss -= diff
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

func kdj(bars []entity.DailyBar, n int) (k, d, j float64) {
	if len(bars) < n {
		return 50, 50, 50
	}
	const alpha = 2.0 / 3.0 // EMA2

	seeded := false
	for i := n - 1; i < len(bars); i++ {
		low, high := math.MaxFloat64, -math.MaxFloat64
		for _, b := range bars[i-n+1 : i+1] {
			low = math.Min(low, b.Low)
			high = math.Max(high, b.High)
		}
		rsv := 50.0
		if high > low {
			rsv = (bars[i].Close - low) / (high - low) * 100
		}
		if !seeded {
			k, d = rsv, rsv
			seeded = true
			continue
		}
		k = alpha*rsv + (1-alpha)*k
		d = alpha*k + (1-alpha)*d
	}
	j = 3*k - 2*d
	return k, d, j
}

func bollinger(closes []float64, n int, width float64) (mid, upper, lower float64) {
	mid = MA(closes, n)
	if len(closes) < n {
		return mid, mid, mid
	}
	sd := stdev(closes[len(closes)-n:])
	return mid, mid + width*sd, mid - width*sd
}

// volumeRatio compares the last 3 days of volume to the 20 trading days that
// ended 3 days ago; short histories fall back to the full-window mean.
func volumeRatio(bars []entity.DailyBar) float64 {
	if len(bars) < 4 {
		return 1
	}
	recent := 0.0
	for _, b := range bars[len(bars)-3:] {
		recent += b.Vol
	}
	recent /= 3

	var base float64
	if len(bars) >= 23 {
		slice := bars[len(bars)-23 : len(bars)-3]
		for _, b := range slice {
			base += b.Vol
		}
		base /= float64(len(slice))
	} else {
		for _, b := range bars {
			base += b.Vol
		}
		base /= float64(len(bars))
	}
	if base == 0 {
		return 1
	}
	return recent / base
}

func volatility(bars []entity.DailyBar, n int) float64 {
	if len(bars) < n {
		return 0
	}
	changes := make([]float64, 0, n)
	for _, b := range bars[len(bars)-n:] {
		changes = append(changes, b.PctChg)
	}
	return stdev(changes) / 100
}

func maxDrawdown(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	start := len(closes) - n
	if start < 0 {
		start = 0
	}
	runMax := closes[start]
	maxDD := 0.0
	for _, c := range closes[start:] {
		if c > runMax {
			runMax = c
		}
		if runMax > 0 {
			dd := (runMax - c) / runMax
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func rangeOf(closes []float64, n int) (high, low float64) {
	start := len(closes) - n
	if start < 0 {
		start = 0
	}
	high, low = closes[start], closes[start]
	for _, c := range closes[start:] {
		high = math.Max(high, c)
		low = math.Min(low, c)
	}
	return high, low
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MeanVol is the mean volume of the last n bars.
func (w *Window) MeanVol(n int) float64 {
	if len(w.Bars) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for _, b := range w.Bars[len(w.Bars)-n:] {
		sum += b.Vol
	}
	return sum / float64(n)
}

// HistMeanVol is the mean volume excluding the last skip bars; used as the
// "historical" baseline when judging recent volume expansion.
func (w *Window) HistMeanVol(skip int) float64 {
	if len(w.Bars) <= skip {
		return 0
	}
	slice := w.Bars[:len(w.Bars)-skip]
	sum := 0.0
	for _, b := range slice {
		sum += b.Vol
	}
	return sum / float64(len(slice))
}

// ChangePct is the percentage change of close over the last n bars.
func (w *Window) ChangePct(n int) float64 {
	if len(w.Bars) < n+1 {
		return 0
	}
	from := w.Bars[len(w.Bars)-n-1].Close
	if from == 0 {
		return 0
	}
	return (w.Close - from) / from * 100
}

// LimitUpCount counts limit-up days within the last n bars.
func (w *Window) LimitUpCount(n int) int {
	return w.countLimit(n, true)
}

// LimitDownCount counts limit-down days within the last n bars.
func (w *Window) LimitDownCount(n int) int {
	return w.countLimit(n, false)
}

func (w *Window) countLimit(n int, up bool) int {
	start := len(w.Bars) - n
	if start < 0 {
		start = 0
	}
	count := 0
	for _, b := range w.Bars[start:] {
		if up && b.PctChg >= LimitThreshold {
			count++
		}
		if !up && b.PctChg <= -LimitThreshold {
			count++
		}
	}
	return count
}

// ConsecutiveUpDays counts the run of up days ending at the last bar. An up
// day means pct_chg > 0, the same convention the limit counters use.
func (w *Window) ConsecutiveUpDays() int {
	count := 0
	for i := len(w.Bars) - 1; i >= 0; i-- {
		if w.Bars[i].PctChg > 0 {
			count++
		} else {
			break
		}
	}
	return count
}

// ConsecutiveDownDays counts the run of down days (pct_chg < 0) ending at
// the last bar.
func (w *Window) ConsecutiveDownDays() int {
	count := 0
	for i := len(w.Bars) - 1; i >= 0; i-- {
		if w.Bars[i].PctChg < 0 {
			count++
		} else {
			break
		}
	}
	return count
}

// ReturnSkew is the skewness of the last n daily percentage changes.
func (w *Window) ReturnSkew(n int) float64 {
	if len(w.Bars) < n {
		return 0
	}
	changes := make([]float64, 0, n)
	for _, b := range w.Bars[len(w.Bars)-n:] {
		changes = append(changes, b.PctChg)
	}
	sd := stdev(changes)
	if sd == 0 {
		return 0
	}
	mean := 0.0
	for _, c := range changes {
		mean += c
	}
	mean /= float64(len(changes))
	sum := 0.0
	for _, c := range changes {
		d := (c - mean) / sd
		sum += d * d * d
	}
	return sum / float64(len(changes))
}

// Closes returns the close series for callers that need offset MAs.
func (w *Window) Closes() []float64 {
	closes := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		closes[i] = b.Close
	}
	return closes
}
