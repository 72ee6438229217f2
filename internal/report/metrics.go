package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bighogz/finscan/internal/extract"
	"github.com/bighogz/finscan/internal/models"
)

var (
	titleSymbol  = regexp.MustCompile(`([A-Z][A-Z.]*) Financial Data`)
	buyCountRe   = regexp.MustCompile(`Buy Count:?\s*(?:</td>\s*<td[^>]*>)?\s*(\d+)`)
	sellCountRe  = regexp.MustCompile(`Sell Count:?\s*(?:</td>\s*<td[^>]*>)?\s*(\d+)`)
	sourceTables = map[string]string{
		"finviz": FinvizTable,
		"yahoo":  YahooTable,
		"broker": BrokerTable,
	}
)

// Extracted is what a rendered report yields without its StockRecord.
type Extracted struct {
	Symbol    string                     `json:"symbol"`
	Sources   map[string]*models.Metrics `json:"sources"`
	KeyStats  []ResolvedStat             `json:"key_stats"`
	Groups    *models.MetricGroups       `json:"metric_groups"`
	BuyCount  int                        `json:"buy_count"`
	SellCount int                        `json:"sell_count"`
	Health    Health                     `json:"health"`
}

// tableByID reads one report table. When the parsed tree has no such table
// the raw page is scanned for it with the regex extractor.
func tableByID(doc *goquery.Document, page, id string) *models.Metrics {
	var m *models.Metrics
	if sel := doc.Find("table#" + id); sel.Length() > 0 {
		m = extract.TablePairs(sel)
	} else {
		re := regexp.MustCompile(`(?is)<table[^>]*\bid=["']?` + regexp.QuoteMeta(id) + `["'\s>].*?</table>`)
		m = extract.RegexPairs(re.FindString(page))
	}
	m.Delete("Metric")
	return m
}

func countFrom(summary *models.Metrics, label string, page string, fallback *regexp.Regexp) int {
	if v, ok := summary.Get(label); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if m := fallback.FindStringSubmatch(page); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// ExtractMetrics recovers the symbol, source tables, key stats, metric groups
// and insider counts from report HTML. Only a missing title is an error.
func ExtractMetrics(page string) (*Extracted, error) {
	m := titleSymbol.FindStringSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("extract metrics: no %q title", "Financial Data")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("extract metrics: %w", err)
	}

	out := &Extracted{Symbol: m[1], Sources: map[string]*models.Metrics{}}
	merged := models.NewMetrics()
	for _, name := range []string{"finviz", "yahoo", "broker"} {
		t := tableByID(doc, page, sourceTables[name])
		out.Sources[name] = t
		t.Each(func(k, v string) bool {
			if !merged.Has(k) {
				merged.Set(k, v)
			}
			return true
		})
	}

	out.KeyStats = make([]ResolvedStat, 0, len(KeyStats))
	for _, ks := range KeyStats {
		rs := ResolvedStat{ID: ks.ID, Label: ks.Label, Value: NotAvailable}
		if v := extract.Text(doc.Find("#" + ks.ID + " .stat-value").First().Text()); v != "" {
			rs.Value = v
			rs.Source, _ = doc.Find("#"+ks.ID).Attr("data-source")
		} else if v, l, ok := Resolve(merged, ks.Labels); ok {
			rs.Value, rs.Source = v, l
		}
		out.KeyStats = append(out.KeyStats, rs)
	}

	out.Groups = &models.MetricGroups{
		Valuation: tableByID(doc, page, ValuationTable),
		Financial: tableByID(doc, page, FinancialTable),
		Technical: tableByID(doc, page, TechnicalTable),
		Growth:    tableByID(doc, page, GrowthTable),
	}
	if out.Groups.Valuation.Len()+out.Groups.Financial.Len()+out.Groups.Technical.Len()+out.Groups.Growth.Len() == 0 {
		out.Groups = models.GroupMetrics(merged)
	}

	summary := tableByID(doc, page, InsiderSummary)
	out.BuyCount = countFrom(summary, "Buy Count", page, buyCountRe)
	out.SellCount = countFrom(summary, "Sell Count", page, sellCountRe)
	out.Health = HealthFromHTML(page)
	return out, nil
}
