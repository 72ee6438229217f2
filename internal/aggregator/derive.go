package aggregator

import (
	"github.com/bighogz/finscan/internal/models"
)

type relabel struct{ from, to string }

var incomeStatement = []relabel{
	{"Income", "Net Income"},
	{"Sales", "Revenue"},
	{"EPS (ttm)", "EPS"},
	{"Gross Margin", "Gross Margin"},
	{"Oper. Margin", "Operating Margin"},
	{"Profit Margin", "Profit Margin"},
}

var balanceSheet = []relabel{
	{"Debt/Eq", "Debt to Equity"},
	{"LT Debt/Eq", "Long-Term Debt to Equity"},
	{"Current Ratio", "Current Ratio"},
	{"Quick Ratio", "Quick Ratio"},
	{"Book/sh", "Book Value per Share"},
	{"Cash/sh", "Cash per Share"},
}

var comparisonRatios = []string{"P/E", "Forward P/E", "PEG", "P/S", "P/B", "P/FCF", "EV/EBITDA"}

var yahooComparisonRatios = []string{"trailingPE", "forwardPE"}

const (
	noAnalystNote  = "No analyst data available"
	noSectorNote   = "Sector and industry unknown; competitor comparison unavailable"
	peerLookupNote = "Peer lookup not implemented; comparison holds only the requested symbol"
)

func copyLabels(src *models.Metrics, labels []relabel) *models.Metrics {
	out := models.NewMetrics()
	for _, l := range labels {
		if v, ok := src.Get(l.from); ok {
			out.Set(l.to, v)
		}
	}
	return out
}

func pick(src *models.Metrics, keys []string) *models.Metrics {
	out := models.NewMetrics()
	for _, k := range keys {
		if v, ok := src.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// AnalystRecommendations reads Finviz's recommendation score and target
// price, and attaches recent actions when a secondary source supplied any.
func AnalystRecommendations(finviz, actions *models.Metrics) *models.AnalystRecommendations {
	r := &models.AnalystRecommendations{}
	if finviz.Usable() {
		r.Recommendation = finviz.Value("Recom")
		r.TargetPrice = finviz.Value("Target Price")
	}
	if actions.Usable() {
		r.RecentActions = actions.Clone()
	}
	if r.Recommendation == "" && r.TargetPrice == "" && r.RecentActions == nil {
		r.Note = noAnalystNote
	}
	return r
}

// FinancialSummary relabels Finviz fields into income statement and balance
// sheet groups. Absent fields are omitted. nil when Finviz has no data.
func FinancialSummary(finviz *models.Metrics) *models.FinancialSummary {
	if !finviz.Usable() {
		return nil
	}
	return &models.FinancialSummary{
		IncomeStatement: copyLabels(finviz, incomeStatement),
		BalanceSheet:    copyLabels(finviz, balanceSheet),
	}
}

// Competitors needs sector and industry from Yahoo. The comparison holds
// only the symbol's own valuation ratios.
func Competitors(symbol string, yahoo, finviz *models.Metrics) *models.Competitors {
	sector, industry := "", ""
	if yahoo.Usable() {
		sector = yahoo.Value("sector")
		industry = yahoo.Value("industry")
	}
	if sector == "" || industry == "" {
		return &models.Competitors{Note: noSectorNote}
	}
	own := models.NewMetrics()
	if finviz.Usable() {
		own = pick(finviz, comparisonRatios)
	}
	if own.Len() == 0 {
		own = pick(yahoo, yahooComparisonRatios)
	}
	return &models.Competitors{
		Sector:     sector,
		Industry:   industry,
		Note:       peerLookupNote,
		Comparison: map[string]*models.Metrics{symbol: own},
	}
}
