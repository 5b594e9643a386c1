package evolution

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// RunReport is the serialized outcome of one evolution run.
type RunReport struct {
	RunAt   string                  `json:"run_at"`
	Refresh *RefreshReport          `json:"refresh,omitempty"`
	Best    map[string]GridResult   `json:"best"`
	History map[string][]GridResult `json:"history"`
}

// writeReports persists best_params.json, last_run.json, last_run.csv and one
// <variant>_best.json per variant under dir. Files are written whole; a
// partially written run never replaces the previous report.
func writeReports(dir string, report *RunReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	best := struct {
		RunAt string                `json:"run_at"`
		Best  map[string]GridResult `json:"best"`
	}{RunAt: report.RunAt, Best: report.Best}
	if err := writeJSON(filepath.Join(dir, "best_params.json"), best); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "last_run.json"), report); err != nil {
		return err
	}
	for variant, res := range report.Best {
		if err := writeJSON(filepath.Join(dir, variant+"_best.json"), res); err != nil {
			return err
		}
	}
	return writeCSV(filepath.Join(dir, "last_run.csv"), report)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var csvHeader = []string{
	"variant", "score_threshold", "max_holding_days", "stop_loss_pct", "take_profit_pct",
	"total_signals", "win_rate", "avg_return", "weighted_avg_return", "sharpe",
	"max_drawdown", "composite_score",
}

func writeCSV(path string, report *RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	variants := make([]string, 0, len(report.History))
	for v := range report.History {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	for _, variant := range variants {
		for _, res := range report.History[variant] {
			row := []string{
				variant,
				fmtF(res.Params.ScoreThreshold),
				strconv.Itoa(res.Params.MaxHoldingDays),
				fmtF(res.Params.StopLossPct),
				fmtF(res.Params.TakeProfitPct),
				strconv.Itoa(res.Stats.TotalSignals),
				fmtF(res.Stats.WinRate),
				fmtF(res.Stats.AvgReturn),
				fmtF(res.Stats.WeightedAvgReturn),
				fmtF(res.Stats.Sharpe),
				fmtF(res.Stats.MaxDrawdown),
				fmtF(res.Score),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// ReadBestParams loads a previously written best_params.json.
func ReadBestParams(dir string) (map[string]GridResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, "best_params.json"))
	if err != nil {
		return nil, err
	}
	var doc struct {
		Best map[string]GridResult `json:"best"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("evolution: parse best_params.json: %w", err)
	}
	return doc.Best, nil
}
