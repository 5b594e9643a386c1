package rebalance

import (
	"fmt"
	"sort"

	"ashare-quant/internal/entity"
	"ashare-quant/internal/indicator"
)

// Action types produced by the daily review.
const (
	ActionHold           = "hold"
	ActionUpdateStopLoss = "update_stop_loss"
	ActionSellAll        = "sell_all"
	ActionReduce         = "reduce"
	ActionCaution        = "caution"
	ActionSwap           = "swap"
)

// Holding is a live position under review.
type Holding struct {
	TsCode       string
	Name         string
	BuyPrice     float64
	CurrentPrice float64
	MaxPrice     float64
	BuyScore     float64
	CurrentScore float64
	Position     float64
	StopLoss     float64
}

// Signal is a scored candidate competing for a slot.
type Signal struct {
	TsCode string
	Name   string
	Score  float64
	Stars  int
}

// Action is one recommended adjustment. Ratio is the fraction of the
// position to cut for reduce/caution actions.
type Action struct {
	Type        string  `json:"type"`
	TsCode      string  `json:"ts_code"`
	ReplaceWith string  `json:"replace_with,omitempty"`
	Ratio       float64 `json:"ratio,omitempty"`
	NewStopLoss float64 `json:"new_stop_loss,omitempty"`
	Reason      string  `json:"reason"`
}

// PnL returns the unrealized return of the holding.
func (h Holding) PnL() float64 {
	if h.BuyPrice == 0 {
		return 0
	}
	return (h.CurrentPrice - h.BuyPrice) / h.BuyPrice
}

func (h Holding) maxGain() float64 {
	if h.BuyPrice == 0 {
		return 0
	}
	return (h.MaxPrice - h.BuyPrice) / h.BuyPrice
}

// CheckProfitProtection ratchets the stop upward once a position is well in
// profit: above +12% it locks in 80% of the max gain since entry, above +8%
// it locks in 50%. A close through the ratchet triggers a full exit.
func CheckProfitProtection(h Holding) Action {
	pnl := h.PnL()
	var lockRatio float64
	switch {
	case pnl >= 0.12:
		lockRatio = 0.8
	case pnl >= 0.08:
		lockRatio = 0.5
	default:
		return Action{Type: ActionHold, TsCode: h.TsCode, Reason: "盈利未达保护线"}
	}

	trailing := h.BuyPrice * (1 + lockRatio*h.maxGain())
	if h.CurrentPrice < trailing {
		return Action{
			Type:   ActionSellAll,
			TsCode: h.TsCode,
			Reason: fmt.Sprintf("跌破动态止盈线 %.2f", trailing),
		}
	}
	if trailing > h.StopLoss {
		return Action{
			Type:        ActionUpdateStopLoss,
			TsCode:      h.TsCode,
			NewStopLoss: trailing,
			Reason:      fmt.Sprintf("盈利%.1f%%，上移止损锁定利润", pnl*100),
		}
	}
	return Action{Type: ActionHold, TsCode: h.TsCode, Reason: "止损已在保护线上方"}
}

// CheckScoreDeterioration compares today's score with the score at entry.
func CheckScoreDeterioration(h Holding) Action {
	drop := h.BuyScore - h.CurrentScore
	switch {
	case h.CurrentScore < 60:
		return Action{Type: ActionSellAll, TsCode: h.TsCode, Reason: fmt.Sprintf("评分跌破60（当前%.1f）", h.CurrentScore)}
	case drop >= 20:
		return Action{Type: ActionReduce, TsCode: h.TsCode, Ratio: 0.7, Reason: fmt.Sprintf("评分大幅恶化（下降%.1f）", drop)}
	case drop >= 15:
		return Action{Type: ActionReduce, TsCode: h.TsCode, Ratio: 0.5, Reason: fmt.Sprintf("评分明显恶化（下降%.1f）", drop)}
	case drop >= 10:
		return Action{Type: ActionCaution, TsCode: h.TsCode, Ratio: 0.3, Reason: fmt.Sprintf("评分走弱（下降%.1f）", drop)}
	}
	return Action{Type: ActionHold, TsCode: h.TsCode, Reason: "评分稳定"}
}

// CheckOpportunityReplacement proposes swapping the weakest holding for a
// clearly stronger new signal. The weakest must either be losing money or
// scoring below 65, and the challenger must outrank it by at least 15 points.
func CheckOpportunityReplacement(holdings []Holding, signals []Signal) []Action {
	if len(holdings) == 0 || len(signals) == 0 {
		return nil
	}
	weakest := holdings[0]
	for _, h := range holdings[1:] {
		if h.CurrentScore < weakest.CurrentScore {
			weakest = h
		}
	}
	if weakest.PnL() >= 0 && weakest.CurrentScore >= 65 {
		return nil
	}

	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		held[h.TsCode] = true
	}

	sorted := append([]Signal(nil), signals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var actions []Action
	for _, s := range sorted {
		if held[s.TsCode] {
			continue
		}
		if s.Score-weakest.CurrentScore < 15 {
			break
		}
		actions = append(actions, Action{
			Type:        ActionSwap,
			TsCode:      weakest.TsCode,
			ReplaceWith: s.TsCode,
			Reason:      fmt.Sprintf("换仓：%s评分%.1f显著优于%s评分%.1f", s.TsCode, s.Score, weakest.TsCode, weakest.CurrentScore),
		})
		break
	}
	return actions
}

// CheckMarketRegimeDefense inspects the index proxy and recommends
// portfolio-wide defensive cuts.
func CheckMarketRegimeDefense(indexBars []entity.DailyBar) Action {
	const code = "__market__"
	if len(indexBars) < 21 {
		return Action{Type: ActionHold, TsCode: code, Reason: "指数历史不足"}
	}
	closes := make([]float64, len(indexBars))
	for i, b := range indexBars {
		closes[i] = b.Close
	}
	ma5 := indicator.MA(closes, 5)
	ma20 := indicator.MA(closes, 20)
	ma5Prev := indicator.MAAt(closes, 5, 1)
	ma20Prev := indicator.MAAt(closes, 20, 1)
	close := closes[len(closes)-1]

	switch {
	case ma5 < ma20 && ma5Prev >= ma20Prev:
		return Action{Type: ActionReduce, TsCode: code, Ratio: 0.5, Reason: "大盘MA5下穿MA20，整体减仓防御"}
	case close < ma20*0.95:
		return Action{Type: ActionReduce, TsCode: code, Ratio: 0.3, Reason: "大盘深跌破20日线，降低仓位"}
	case close > ma20*1.05:
		return Action{Type: ActionCaution, TsCode: code, Ratio: 0.2, Reason: "大盘短期过热，谨慎追高"}
	}
	return Action{Type: ActionHold, TsCode: code, Reason: "大盘环境正常"}
}

// Plan is the output of one daily review.
type Plan struct {
	Market   Action   `json:"market"`
	PerStock []Action `json:"per_stock"`
	Swaps    []Action `json:"swaps"`
}

// GenerateDailyRebalancePlan runs every check and merges the results. For a
// single holding the most severe action wins: sell_all over reduce, larger
// reduce ratio over smaller, anything over hold.
func GenerateDailyRebalancePlan(holdings []Holding, signals []Signal, indexBars []entity.DailyBar) Plan {
	plan := Plan{Market: CheckMarketRegimeDefense(indexBars)}

	for _, h := range holdings {
		profit := CheckProfitProtection(h)
		score := CheckScoreDeterioration(h)
		plan.PerStock = append(plan.PerStock, mergeActions(profit, score))
	}
	plan.Swaps = CheckOpportunityReplacement(holdings, signals)
	return plan
}

func severity(a Action) int {
	switch a.Type {
	case ActionSellAll:
		return 4
	case ActionReduce:
		return 3
	case ActionCaution:
		return 2
	case ActionUpdateStopLoss:
		return 1
	}
	return 0
}

func mergeActions(a, b Action) Action {
	sa, sb := severity(a), severity(b)
	if sa > sb {
		return a
	}
	if sb > sa {
		return b
	}
	if a.Type == b.Type && b.Ratio > a.Ratio {
		return b
	}
	return a
}
