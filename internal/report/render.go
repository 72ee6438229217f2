package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/bighogz/finscan/internal/models"
)

// Table ids the client script and ExtractMetrics look up.
const (
	FinvizTable      = "finviz-table"
	BrokerTable      = "broker-table"
	InsiderSummary   = "insider-summary"
	InsiderTable     = "insider-table"
	YahooTable       = "yahoo-table"
	AnalystTable     = "analyst-table"
	IncomeTable      = "income-table"
	BalanceTable     = "balance-table"
	CompetitorsTable = "competitors-table"
	ValuationTable   = "valuation-table"
	FinancialTable   = "financial-table"
	TechnicalTable   = "technical-table"
	GrowthTable      = "growth-table"
)

const generatedLayout = "2006-01-02 15:04:05 MST"

//go:embed templates/report.html.tmpl
var reportTemplate string

//go:embed templates/report.css
var reportCSS string

//go:embed templates/report.js
var reportJS string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

type row struct{ Label, Value string }

type table struct {
	ID    string
	Title string
	Rows  []row
	Error string
}

func rows(m *models.Metrics) []row {
	var out []row
	m.Each(func(k, v string) bool {
		if k != models.ErrorKey {
			out = append(out, row{k, v})
		}
		return true
	})
	return out
}

func metricsTable(id, title string, m *models.Metrics) table {
	t := table{ID: id, Title: title}
	if reason, ok := m.ErrorReason(); ok {
		t.Error = reason
		return t
	}
	t.Rows = rows(m)
	return t
}

type insiderView struct {
	Error   string
	Summary table
	Headers []string
	Trades  [][]string
}

type brokerView struct {
	Table    table
	Provider string
	Status   string
	Note     string
}

type competitorView struct {
	Sector   string
	Industry string
	Note     string
	Tables   []table
}

type view struct {
	Symbol      string
	RunID       string
	Generated   string
	Stats       []ResolvedStat
	Health      Health
	HealthClass string
	Finviz      table
	Broker      brokerView
	Insider     insiderView
	Yahoo       table
	Analyst     table
	AnalystNote string
	Financials  []table
	Competitors competitorView
	Groups      []table
	Clipboard   string
	CSS         template.CSS
	Script      template.JS
}

// insiderColumns is the union of trade keys in first-seen order.
func insiderColumns(trades []models.InsiderTrade) []string {
	seen := map[string]bool{}
	var cols []string
	for _, t := range trades {
		for _, k := range t.Fields.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func newInsiderView(d models.InsiderData) insiderView {
	if d.Error != "" {
		return insiderView{Error: d.Error}
	}
	v := insiderView{
		Summary: table{ID: InsiderSummary, Title: "Summary", Rows: []row{
			{"Buy Count", fmt.Sprint(d.BuyCount)},
			{"Sell Count", fmt.Sprint(d.SellCount)},
			{"Buy/Sell Ratio", d.BuySellRatio},
			{"Trade Count", fmt.Sprint(d.TradeCount)},
		}},
		Headers: insiderColumns(d.Trades),
	}
	for _, t := range d.Trades {
		line := make([]string, len(v.Headers))
		for i, h := range v.Headers {
			line[i] = t.Fields.Value(h)
		}
		v.Trades = append(v.Trades, line)
	}
	return v
}

func newBrokerView(b models.BrokerData) brokerView {
	v := brokerView{Table: table{ID: BrokerTable, Title: "Broker Market Data"}}
	if b.Error != "" {
		v.Table.Error = b.Error
		return v
	}
	v.Provider, v.Status, v.Note = b.Provider, b.Status, b.Note
	v.Table.Rows = rows(b.MarketData)
	return v
}

func analystTable(a *models.AnalystRecommendations) (table, string) {
	t := table{ID: AnalystTable, Title: "Analyst Recommendations"}
	if a == nil {
		return t, ""
	}
	if a.Recommendation != "" {
		t.Rows = append(t.Rows, row{"Recom", a.Recommendation})
	}
	if a.TargetPrice != "" {
		t.Rows = append(t.Rows, row{"Target Price", a.TargetPrice})
	}
	t.Rows = append(t.Rows, rows(a.RecentActions)...)
	return t, a.Note
}

func newCompetitorView(c *models.Competitors) competitorView {
	if c == nil {
		return competitorView{}
	}
	v := competitorView{Sector: c.Sector, Industry: c.Industry, Note: c.Note}
	symbols := make([]string, 0, len(c.Comparison))
	for s := range c.Comparison {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for i, s := range symbols {
		id := CompetitorsTable
		if i > 0 {
			id = fmt.Sprintf("%s-%d", CompetitorsTable, i)
		}
		v.Tables = append(v.Tables, metricsTable(id, s, c.Comparison[s]))
	}
	return v
}

func healthClass(tier string) string {
	return "health-" + strings.ToLower(tier)
}

func newView(rec *models.StockRecord) view {
	merged := rec.Merged()
	v := view{
		Symbol:      rec.Symbol,
		RunID:       rec.RunID,
		Generated:   rec.CollectedAt.UTC().Format(generatedLayout),
		Stats:       ResolveKeyStats(merged),
		Health:      HealthFromMetrics(merged),
		Finviz:      metricsTable(FinvizTable, "Finviz", rec.Finviz),
		Broker:      newBrokerView(rec.Broker),
		Insider:     newInsiderView(rec.OpenInsider),
		Yahoo:       metricsTable(YahooTable, "Yahoo Finance", rec.Yahoo),
		Competitors: newCompetitorView(rec.Competitors),
		Clipboard:   ClipboardText(rec),
		CSS:         template.CSS(reportCSS),
		Script:      template.JS(reportJS),
	}
	v.HealthClass = healthClass(v.Health.Tier)
	v.Analyst, v.AnalystNote = analystTable(rec.Analyst)
	if f := rec.Financials; f != nil {
		v.Financials = []table{
			metricsTable(IncomeTable, "Income Statement", f.IncomeStatement),
			metricsTable(BalanceTable, "Balance Sheet", f.BalanceSheet),
		}
	}
	groups := rec.Groups
	if groups == nil {
		groups = models.GroupMetrics(merged)
	}
	v.Groups = []table{
		metricsTable(ValuationTable, "Valuation", groups.Valuation),
		metricsTable(FinancialTable, "Financial Health", groups.Financial),
		metricsTable(TechnicalTable, "Technical", groups.Technical),
		metricsTable(GrowthTable, "Growth", groups.Growth),
	}
	return v
}

// Render produces the self-contained HTML report. The only time it embeds is
// the record's collection time, so equal records render to equal bytes.
func Render(rec *models.StockRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("render: nil record")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newView(rec)); err != nil {
		return nil, fmt.Errorf("render %s: %w", rec.Symbol, err)
	}
	return buf.Bytes(), nil
}

// RenderJSON serializes the record with source keys as given, indented.
func RenderJSON(rec *models.StockRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", rec.Symbol, err)
	}
	return pretty.Pretty(b), nil
}
