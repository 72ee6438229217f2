package models

import (
	"slices"
	"strings"
)

// Metric group membership, by Finviz label.
var (
	ValuationKeys = []string{"P/E", "P/S", "P/B", "P/FCF", "EPS", "Dividend", "Dividend %", "PEG", "EV/EBITDA"}
	FinancialKeys = []string{"ROA", "ROE", "ROI", "Gross Margin", "Oper. Margin", "Profit Margin", "Earnings", "Payout", "Debt/Eq", "Current Ratio"}
	TechnicalKeys = []string{"RSI", "Rel Volume", "Beta", "ATR", "Volatility", "52W High", "52W Low", "SMA20", "SMA50", "SMA200"}
	GrowthKeys    = []string{"EPS next Y", "EPS next Q", "Sales Q/Q", "EPS Q/Q"}
)

func pick(src *Metrics, keys []string) *Metrics {
	out := NewMetrics()
	for _, k := range keys {
		if v, ok := src.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// GroupMetrics sorts fields into valuation, financial, technical and growth
// groups. Growth also takes any key mentioning "Growth".
func GroupMetrics(merged *Metrics) *MetricGroups {
	g := &MetricGroups{
		Valuation: pick(merged, ValuationKeys),
		Financial: pick(merged, FinancialKeys),
		Technical: pick(merged, TechnicalKeys),
		Growth:    NewMetrics(),
	}
	merged.Each(func(k, v string) bool {
		if strings.Contains(k, "Growth") || slices.Contains(GrowthKeys, k) {
			g.Growth.Set(k, v)
		}
		return true
	})
	return g
}
