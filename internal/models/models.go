package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Side is the buy/sell classification of one insider trade.
type Side int

const (
	SideNone Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "none"
	}
}

var (
	tradeTypeLabels = []string{"Trade Type", "Transaction", "Type"}
	qtyLabels       = []string{"Qty", "Quantity", "Shares"}
)

// InsiderTrade is one filed transaction. Column names come from the source
// table, so the row is kept as an ordered mapping.
type InsiderTrade struct {
	Fields *Metrics
}

func NewInsiderTrade(fields *Metrics) InsiderTrade {
	if fields == nil {
		fields = NewMetrics()
	}
	return InsiderTrade{Fields: fields}
}

func firstOf(m *Metrics, labels []string) string {
	for _, l := range labels {
		if v, ok := m.Get(l); ok {
			return v
		}
	}
	return ""
}

func (t InsiderTrade) TradeType() string { return strings.TrimSpace(firstOf(t.Fields, tradeTypeLabels)) }
func (t InsiderTrade) Qty() string       { return strings.TrimSpace(firstOf(t.Fields, qtyLabels)) }

// Side classifies the trade. Trade type text wins: "P..." is a purchase and
// "S..." a sale. Only when the type is empty does the quantity sign decide.
func (t InsiderTrade) Side() Side {
	if tt := strings.ToUpper(t.TradeType()); tt != "" {
		switch {
		case strings.HasPrefix(tt, "P"):
			return SideBuy
		case strings.HasPrefix(tt, "S"):
			return SideSell
		}
		return SideNone
	}
	q := t.Qty()
	switch {
	case strings.HasPrefix(q, "+"):
		return SideBuy
	case strings.HasPrefix(q, "-"):
		return SideSell
	}
	return SideNone
}

func (t InsiderTrade) MarshalJSON() ([]byte, error) {
	if t.Fields == nil {
		return []byte("{}"), nil
	}
	return t.Fields.MarshalJSON()
}

func (t *InsiderTrade) UnmarshalJSON(data []byte) error {
	t.Fields = NewMetrics()
	return t.Fields.UnmarshalJSON(data)
}

// InsiderData is the OpenInsider slot of a StockRecord.
type InsiderData struct {
	Trades       []InsiderTrade `json:"insider_trades"`
	TradeCount   int            `json:"trade_count"`
	BuyCount     int            `json:"buy_count"`
	SellCount    int            `json:"sell_count"`
	BuySellRatio string         `json:"buy_sell_ratio"`
	Error        string         `json:"error,omitempty"`
}

// NewInsiderData tallies trades into counts and the "buy:sell" ratio.
func NewInsiderData(trades []InsiderTrade) InsiderData {
	d := InsiderData{Trades: trades, TradeCount: len(trades)}
	if d.Trades == nil {
		d.Trades = []InsiderTrade{}
	}
	for _, t := range trades {
		switch t.Side() {
		case SideBuy:
			d.BuyCount++
		case SideSell:
			d.SellCount++
		}
	}
	d.BuySellRatio = Ratio(d.BuyCount, d.SellCount)
	return d
}

// InsiderError returns the failed-source marker.
func InsiderError(reason string) InsiderData {
	return InsiderData{Error: reason}
}

func Ratio(buy, sell int) string {
	return fmt.Sprintf("%d:%d", buy, sell)
}

type insiderDataJSON InsiderData

func (d InsiderData) MarshalJSON() ([]byte, error) {
	if d.Error != "" {
		return json.Marshal(map[string]string{ErrorKey: d.Error})
	}
	return json.Marshal(insiderDataJSON(d))
}

// BrokerData is the broker slot. With Error set nothing else is serialized.
type BrokerData struct {
	Provider       string    `json:"provider,omitempty"`
	Symbol         string    `json:"symbol"`
	Status         string    `json:"status"`
	APIKeyProvided bool      `json:"api_key_provided"`
	MarketData     *Metrics  `json:"market_data"`
	Timestamp      time.Time `json:"timestamp"`
	Note           string    `json:"note,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func BrokerError(reason string) BrokerData {
	return BrokerData{Error: reason}
}

type brokerDataJSON BrokerData

func (b BrokerData) MarshalJSON() ([]byte, error) {
	if b.Error != "" {
		return json.Marshal(map[string]string{ErrorKey: b.Error})
	}
	return json.Marshal(brokerDataJSON(b))
}

// AnalystRecommendations prefers Finviz fields; RecentActions maps a date to
// "firm: action".
type AnalystRecommendations struct {
	Recommendation string   `json:"recommendation,omitempty"`
	TargetPrice    string   `json:"target_price,omitempty"`
	RecentActions  *Metrics `json:"recent_actions,omitempty"`
	Note           string   `json:"note,omitempty"`
}

type FinancialSummary struct {
	IncomeStatement *Metrics `json:"income_statement"`
	BalanceSheet    *Metrics `json:"balance_sheet"`
}

// Competitors is a placeholder: Comparison only ever holds the symbol itself.
type Competitors struct {
	Sector     string              `json:"sector,omitempty"`
	Industry   string              `json:"industry,omitempty"`
	Note       string              `json:"note,omitempty"`
	Comparison map[string]*Metrics `json:"comparison,omitempty"`
}

type MetricGroups struct {
	Valuation *Metrics `json:"valuation"`
	Financial *Metrics `json:"financial"`
	Technical *Metrics `json:"technical"`
	Growth    *Metrics `json:"growth"`
}

// StockRecord is the merged result of one aggregation. It is built once and
// never updated afterwards.
type StockRecord struct {
	Symbol      string                  `json:"symbol"`
	RunID       string                  `json:"run_id"`
	CollectedAt time.Time               `json:"collected_at"`
	Finviz      *Metrics                `json:"finviz"`
	Broker      BrokerData              `json:"broker_data"`
	OpenInsider InsiderData             `json:"openinsider"`
	Yahoo       *Metrics                `json:"yahoo_finance"`
	Analyst     *AnalystRecommendations `json:"analyst_recommendations,omitempty"`
	Financials  *FinancialSummary       `json:"financial_summary,omitempty"`
	Competitors *Competitors            `json:"competitors,omitempty"`
	Groups      *MetricGroups           `json:"metric_groups,omitempty"`
}

// Merged flattens Finviz, Yahoo and broker market data into one mapping.
// Earlier sources win on key collision and failed sources are skipped.
func (r *StockRecord) Merged() *Metrics {
	out := NewMetrics()
	add := func(m *Metrics) {
		if !m.Usable() {
			return
		}
		m.Each(func(k, v string) bool {
			if !out.Has(k) {
				out.Set(k, v)
			}
			return true
		})
	}
	add(r.Finviz)
	add(r.Yahoo)
	if r.Broker.Error == "" {
		add(r.Broker.MarketData)
	}
	return out
}
