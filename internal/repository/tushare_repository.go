package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ashare-quant/internal/config"
	"ashare-quant/internal/entity"
	"ashare-quant/pkg/logger"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// ErrNoData is returned when the provider answers successfully but with an
// empty item set. Callers treat it as "nothing for this day", not a failure.
var ErrNoData = errors.New("tushare: no data")

// TushareRepository is the upstream data provider adapter.
type TushareRepository interface {
	TradeCalendar(ctx context.Context, startDate, endDate string) ([]string, error)
	StockList(ctx context.Context) ([]entity.StockBasic, error)
	DailyByDate(ctx context.Context, tradeDate string) ([]entity.DailyBar, error)
	IndexDailyByDate(ctx context.Context, indexCode, tradeDate string) (*entity.DailyBar, error)
	DailyBasicByDate(ctx context.Context, tradeDate string) (map[string]MarketValue, error)
	NorthboundByDate(ctx context.Context, tradeDate string) (*entity.NorthboundFlow, error)
	MarginByDate(ctx context.Context, tradeDate string) (*entity.MarginSummary, error)
	FundPortfolio(ctx context.Context, fundCode, period string) ([]entity.FundPortfolioCache, error)
}

type tushareRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

func NewTushareRepository(cfg *config.Config, log *logger.Logger) TushareRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.Tushare.MaxRequestPerMinute)
	return &tushareRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Tushare.TimeoutSeconds) * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

// table is a decoded fields/items payload with column lookup by name.
type table struct {
	cols  map[string]int
	items []gjson.Result
}

func (t *table) f(row gjson.Result, col string) float64 {
	idx, ok := t.cols[col]
	if !ok {
		return 0
	}
	return row.Array()[idx].Float()
}

func (t *table) s(row gjson.Result, col string) string {
	idx, ok := t.cols[col]
	if !ok {
		return ""
	}
	return row.Array()[idx].String()
}

func (r *tushareRepository) query(ctx context.Context, apiName string, params map[string]string, fields string) (*table, error) {
	if r.cfg.Tushare.Token == "" {
		return nil, fmt.Errorf("tushare: token is required for api %s", apiName)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"api_name": apiName,
		"token":    r.cfg.Tushare.Token,
		"params":   params,
		"fields":   fields,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Tushare.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tushare: %s: %w", apiName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tushare: %s: unexpected status %d", apiName, resp.StatusCode)
	}

	parsed := gjson.ParseBytes(raw)
	if code := parsed.Get("code").Int(); code != 0 {
		return nil, fmt.Errorf("tushare: %s: code %d: %s", apiName, code, parsed.Get("msg").String())
	}

	items := parsed.Get("data.items").Array()
	if len(items) == 0 {
		return nil, ErrNoData
	}
	cols := make(map[string]int)
	for i, f := range parsed.Get("data.fields").Array() {
		cols[f.String()] = i
	}
	r.log.DebugContext(ctx, "tushare query ok",
		logger.StringField("api", apiName), logger.IntField("rows", len(items)))
	return &table{cols: cols, items: items}, nil
}

// TradeCalendar returns the exchange's open trading dates in [startDate, endDate],
// ascending.
func (r *tushareRepository) TradeCalendar(ctx context.Context, startDate, endDate string) ([]string, error) {
	t, err := r.query(ctx, "trade_cal", map[string]string{
		"exchange":   "SSE",
		"start_date": startDate,
		"end_date":   endDate,
		"is_open":    "1",
	}, "cal_date")
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(t.items))
	for _, row := range t.items {
		dates = append(dates, t.s(row, "cal_date"))
	}
	// The API returns newest first.
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates, nil
}

func (r *tushareRepository) StockList(ctx context.Context) ([]entity.StockBasic, error) {
	t, err := r.query(ctx, "stock_basic", map[string]string{"list_status": "L"},
		"ts_code,name,industry,market")
	if err != nil {
		return nil, err
	}
	stocks := make([]entity.StockBasic, 0, len(t.items))
	for _, row := range t.items {
		name := t.s(row, "name")
		stocks = append(stocks, entity.StockBasic{
			TsCode:   t.s(row, "ts_code"),
			Name:     name,
			Industry: t.s(row, "industry"),
			Market:   t.s(row, "market"),
			IsST:     entity.STFromName(name),
		})
	}
	return stocks, nil
}

func (r *tushareRepository) DailyByDate(ctx context.Context, tradeDate string) ([]entity.DailyBar, error) {
	t, err := r.query(ctx, "daily", map[string]string{"trade_date": tradeDate},
		"ts_code,trade_date,open,high,low,close,pre_close,vol,amount,pct_chg")
	if err != nil {
		return nil, err
	}
	return t.toBars(), nil
}

func (r *tushareRepository) IndexDailyByDate(ctx context.Context, indexCode, tradeDate string) (*entity.DailyBar, error) {
	t, err := r.query(ctx, "index_daily", map[string]string{
		"ts_code":    indexCode,
		"trade_date": tradeDate,
	}, "ts_code,trade_date,open,high,low,close,pre_close,vol,amount,pct_chg")
	if err != nil {
		return nil, err
	}
	bars := t.toBars()
	return &bars[0], nil
}

func (t *table) toBars() []entity.DailyBar {
	bars := make([]entity.DailyBar, 0, len(t.items))
	for _, row := range t.items {
		bars = append(bars, entity.DailyBar{
			TsCode:    t.s(row, "ts_code"),
			TradeDate: t.s(row, "trade_date"),
			Open:      t.f(row, "open"),
			High:      t.f(row, "high"),
			Low:       t.f(row, "low"),
			Close:     t.f(row, "close"),
			PreClose:  t.f(row, "pre_close"),
			Vol:       t.f(row, "vol"),
			Amount:    t.f(row, "amount"),
			PctChg:    t.f(row, "pct_chg"),
		})
	}
	return bars
}

func (r *tushareRepository) DailyBasicByDate(ctx context.Context, tradeDate string) (map[string]MarketValue, error) {
	t, err := r.query(ctx, "daily_basic", map[string]string{"trade_date": tradeDate},
		"ts_code,circ_mv,total_mv")
	if err != nil {
		return nil, err
	}
	values := make(map[string]MarketValue, len(t.items))
	for _, row := range t.items {
		values[t.s(row, "ts_code")] = MarketValue{
			CircMv:  t.f(row, "circ_mv"),
			TotalMv: t.f(row, "total_mv"),
		}
	}
	return values, nil
}

func (r *tushareRepository) NorthboundByDate(ctx context.Context, tradeDate string) (*entity.NorthboundFlow, error) {
	t, err := r.query(ctx, "moneyflow_hsgt", map[string]string{"trade_date": tradeDate},
		"trade_date,north_money,south_money,ggt_ss,ggt_sz,hgt,sgt")
	if err != nil {
		return nil, err
	}
	row := t.items[0]
	return &entity.NorthboundFlow{
		TradeDate:  t.s(row, "trade_date"),
		NorthMoney: t.f(row, "north_money"),
		SouthMoney: t.f(row, "south_money"),
		GgNet:      t.f(row, "ggt_ss") + t.f(row, "ggt_sz"),
		HgNet:      t.f(row, "hgt"),
		SgNet:      t.f(row, "sgt"),
	}, nil
}

func (r *tushareRepository) MarginByDate(ctx context.Context, tradeDate string) (*entity.MarginSummary, error) {
	t, err := r.query(ctx, "margin", map[string]string{"trade_date": tradeDate},
		"trade_date,rzye,rqye,rzrqye")
	if err != nil {
		return nil, err
	}
	// One row per exchange; sum into a market-wide summary.
	sum := entity.MarginSummary{TradeDate: tradeDate}
	for _, row := range t.items {
		sum.Rzye += t.f(row, "rzye")
		sum.Rqye += t.f(row, "rqye")
		sum.Rzrqye += t.f(row, "rzrqye")
	}
	return &sum, nil
}

func (r *tushareRepository) FundPortfolio(ctx context.Context, fundCode, period string) ([]entity.FundPortfolioCache, error) {
	t, err := r.query(ctx, "fund_portfolio", map[string]string{
		"ts_code": fundCode,
		"period":  period,
	}, "ts_code,end_date,symbol,mkt_value,stk_mkt_value,stk_float_ratio")
	if err != nil {
		return nil, err
	}
	rows := make([]entity.FundPortfolioCache, 0, len(t.items))
	for _, row := range t.items {
		rows = append(rows, entity.FundPortfolioCache{
			TsCode:      t.s(row, "ts_code"),
			EndDate:     t.s(row, "end_date"),
			Symbol:      t.s(row, "symbol"),
			MktValue:    t.f(row, "mkt_value"),
			StkMktValue: t.f(row, "stk_mkt_value"),
			HoldRatio:   t.f(row, "stk_float_ratio"),
		})
	}
	return rows, nil
}
