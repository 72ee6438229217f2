package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bighogz/finscan/internal/models"
)

func trade(kv ...string) models.InsiderTrade {
	return models.NewInsiderTrade(models.MetricsOf(kv...))
}

func sampleRecord() *models.StockRecord {
	finviz := models.MetricsOf(
		"Price", "150.00", "Change", "+1.2%", "P/E", "28.5", "Recom", "1.90",
		"Market Cap", "2.9T", "Beta", "1.2", "ROE", "150%", "RSI (14)", "55",
	)
	rec := &models.StockRecord{
		Symbol:      "AAPL",
		RunID:       "run-1",
		CollectedAt: time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC),
		Finviz:      finviz,
		Broker:      models.BrokerError("not configured"),
		OpenInsider: models.NewInsiderData([]models.InsiderTrade{
			trade("Filing Date", "2025-01-10", "Insider Name", "Doe Jane", "Trade Type", "P - Purchase", "Qty", "+100"),
			trade("Filing Date", "2025-01-09", "Insider Name", "Roe Rick", "Trade Type", "P - Purchase", "Qty", "+50"),
			trade("Filing Date", "2025-01-08", "Insider Name", "Poe Ed", "Trade Type", "S - Sale", "Qty", "-75"),
		}),
		Yahoo: models.MetricsOf("source", "derived from Finviz", "currentPrice", "150.00", "priceChange", "+1.2%", "trailingPE", "28.5"),
		Analyst: &models.AnalystRecommendations{
			Recommendation: "1.90",
			RecentActions:  models.MetricsOf("2025-01-30", "Citi: Upgrade Buy"),
		},
		Competitors: &models.Competitors{
			Sector:     "Technology",
			Industry:   "Consumer Electronics",
			Comparison: map[string]*models.Metrics{"AAPL": models.MetricsOf("P/E", "28.5")},
		},
	}
	rec.Groups = models.GroupMetrics(rec.Merged())
	return rec
}

func TestRender_TitleAndSections(t *testing.T) {
	html, err := Render(sampleRecord())
	require.NoError(t, err)
	page := string(html)

	assert.Contains(t, page, "<title>AAPL Financial Data</title>")
	assert.Contains(t, page, "Data collected on 2025-01-31 09:30:00 UTC")
	for _, id := range []string{FinvizTable, YahooTable, InsiderSummary, InsiderTable, AnalystTable, CompetitorsTable, ValuationTable} {
		assert.Contains(t, page, `id="`+id+`"`, id)
	}
	assert.Contains(t, page, `id="broker-table-error"`)
	assert.NotContains(t, page, `id="broker-table"`)
}

func TestRender_Idempotent(t *testing.T) {
	rec := sampleRecord()
	a, err := Render(rec)
	require.NoError(t, err)
	b, err := Render(rec)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestRender_FailedSourcesStillRender(t *testing.T) {
	rec := &models.StockRecord{
		Symbol:      "THS",
		Finviz:      models.NewMetrics(),
		Broker:      models.BrokerError("not configured"),
		OpenInsider: models.InsiderError("Failed to fetch data"),
		Yahoo:       models.ErrorMetrics("rate limited"),
	}
	html, err := Render(rec)
	require.NoError(t, err)
	page := string(html)
	assert.Contains(t, page, "THS Financial Data")
	assert.Contains(t, page, "Error: rate limited")
	assert.Contains(t, page, "Error: Failed to fetch data")
	assert.Contains(t, page, `id="finviz-table-empty"`)
}

func TestRender_NilRecord(t *testing.T) {
	_, err := Render(nil)
	assert.Error(t, err)
}

func TestRenderJSON_KeepsSourceKeys(t *testing.T) {
	b, err := RenderJSON(sampleRecord())
	require.NoError(t, err)
	doc := gjson.ParseBytes(b)
	assert.Equal(t, "AAPL", doc.Get("symbol").String())
	assert.Equal(t, "2:1", doc.Get("openinsider.buy_sell_ratio").String())
	assert.Equal(t, "not configured", doc.Get("broker_data.error").String())
	assert.Equal(t, "150.00", doc.Get("yahoo_finance.currentPrice").String())
	assert.Less(t, strings.Index(string(b), `"Price"`), strings.Index(string(b), `"Change"`))
}

func TestResolveKeyStats_PriorityList(t *testing.T) {
	stats := ResolveKeyStats(models.MetricsOf("currentPrice", "101.20"))
	byID := map[string]ResolvedStat{}
	for _, s := range stats {
		byID[s.ID] = s
	}
	assert.Equal(t, "101.20", byID["stockPrice"].Value)
	assert.Equal(t, "currentPrice", byID["stockPrice"].Source)
	assert.Equal(t, NotAvailable, byID["beta"].Value)
	assert.Len(t, stats, len(KeyStats))
}

func TestResolve_FirstPresentWins(t *testing.T) {
	v, l, ok := Resolve(models.MetricsOf("Last Price", "9", "Price", "10"), []string{"Price", "currentPrice", "Last Price"})
	require.True(t, ok)
	assert.Equal(t, "10", v)
	assert.Equal(t, "Price", l)

	_, _, ok = Resolve(nil, []string{"Price"})
	assert.False(t, ok)
}

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestScore_Thresholds(t *testing.T) {
	tests := []struct {
		pe, change, recom string
		wantPE, wantCh, wantR int
	}{
		{"-3", "-6", "4.6", 20, 15, 15},
		{"0", "-5", "4.0", 20, 15, 30},
		{"9.9", "-4.9", "3.5", 80, 30, 30},
		{"10", "-2", "3.0", 70, 30, 50},
		{"14.99", "-1.5", "2.2", 70, 45, 75},
		{"15", "0", "2.21", 60, 45, 50},
		{"24.9", "0.1", "1.5", 50, 60, 90},
		{"25", "2.5", "1.0", 40, 75, 90},
		{"50", "5.1", "1.51", 30, 90, 75},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s/%s", tt.pe, tt.change, tt.recom), func(t *testing.T) {
			h := Score(dec(tt.pe), dec(tt.change), dec(tt.recom))
			assert.Equal(t, tt.wantPE, h.PEScore)
			assert.Equal(t, tt.wantCh, h.ChangeScore)
			assert.Equal(t, tt.wantR, h.RecommendationScore)
		})
	}
}

func TestScore_MissingInputsAreNeutral(t *testing.T) {
	h := Score(nil, nil, nil)
	assert.Equal(t, 50.0, h.Overall)
	assert.Equal(t, TierNeutral, h.Tier)
}

func TestScore_Tiers(t *testing.T) {
	assert.Equal(t, TierStrong, Score(dec("5"), dec("6"), dec("1")).Tier)
	assert.Equal(t, TierWeak, Score(dec("-1"), dec("-9"), dec("5")).Tier)
	h := Score(dec("12"), dec("1"), dec("2.0"))
	assert.InDelta(t, 68.3, h.Overall, 0.01)
	assert.Equal(t, TierGood, h.Tier)
}

func TestScore_Monotonic(t *testing.T) {
	pes := []string{"80", "30", "22", "17", "12", "5"}
	changes := []string{"-8", "-3", "-1", "1", "3", "7"}
	recoms := []string{"5", "3.8", "2.8", "2.0", "1.2"}

	for _, c := range changes {
		for _, r := range recoms {
			prev := -1
			for _, pe := range pes {
				rank := tierRank(Score(dec(pe), dec(c), dec(r)).Tier)
				assert.GreaterOrEqual(t, rank, prev, "pe %s change %s recom %s", pe, c, r)
				prev = rank
			}
		}
	}
	for _, pe := range pes {
		for _, r := range recoms {
			prev := -1
			for _, c := range changes {
				rank := tierRank(Score(dec(pe), dec(c), dec(r)).Tier)
				assert.GreaterOrEqual(t, rank, prev)
				prev = rank
			}
		}
	}
	for _, pe := range pes {
		for _, c := range changes {
			prev := -1
			for _, r := range recoms {
				rank := tierRank(Score(dec(pe), dec(c), dec(r)).Tier)
				assert.GreaterOrEqual(t, rank, prev)
				prev = rank
			}
		}
	}
}

func TestHealthFromMetrics(t *testing.T) {
	h := HealthFromMetrics(models.MetricsOf("P/E", "28.5", "Change", "+1.2%"))
	assert.Equal(t, 40, h.PEScore)
	assert.Equal(t, 60, h.ChangeScore)
	assert.Equal(t, missingScore, h.RecommendationScore)
	assert.Equal(t, 50.0, h.Overall)
	assert.Equal(t, TierNeutral, h.Tier)
}

func TestHealthFromHTML_MatchesRecord(t *testing.T) {
	rec := sampleRecord()
	html, err := Render(rec)
	require.NoError(t, err)
	assert.Equal(t, HealthFromMetrics(rec.Merged()), HealthFromHTML(string(html)))
}

func TestHealthFromHTML_EscapedChange(t *testing.T) {
	page := `<table><tr><td>Change</td><td>&#43;6.10%</td></tr><tr><td>P/E</td><td>-</td></tr><tr><td>trailingPE</td><td>12.0</td></tr></table>`
	h := HealthFromHTML(page)
	assert.Equal(t, 90, h.ChangeScore)
	assert.Equal(t, 70, h.PEScore)
	assert.Equal(t, missingScore, h.RecommendationScore)
}

func TestTierRank(t *testing.T) {
	assert.Equal(t, 0, tierRank(TierWeak))
	assert.Equal(t, 4, tierRank(TierStrong))
	assert.Equal(t, -1, tierRank("Unknown"))
}

func TestExtractMetrics_RoundTrip(t *testing.T) {
	rec := sampleRecord()
	html, err := Render(rec)
	require.NoError(t, err)

	got, err := ExtractMetrics(string(html))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, rec.Finviz.Keys(), got.Sources["finviz"].Keys())
	assert.Equal(t, "+1.2%", got.Sources["finviz"].Value("Change"))
	assert.Equal(t, "derived from Finviz", got.Sources["yahoo"].Value("source"))
	assert.Equal(t, 0, got.Sources["broker"].Len())
	assert.Equal(t, 2, got.BuyCount)
	assert.Equal(t, 1, got.SellCount)
	assert.Equal(t, rec.Groups.Valuation.Keys(), got.Groups.Valuation.Keys())
	assert.Equal(t, rec.Groups.Technical.Keys(), got.Groups.Technical.Keys())

	for _, s := range got.KeyStats {
		if s.ID == "stockPrice" {
			assert.Equal(t, "150.00", s.Value)
			assert.Equal(t, "Price", s.Source)
		}
	}
}

func TestExtractMetrics_RegexCounts(t *testing.T) {
	page := `<html><head><title>THS Financial Data</title></head><body><p>Buy Count: 4</p><p>Sell Count: 7</p></body></html>`
	got, err := ExtractMetrics(page)
	require.NoError(t, err)
	assert.Equal(t, "THS", got.Symbol)
	assert.Equal(t, 4, got.BuyCount)
	assert.Equal(t, 7, got.SellCount)
}

func TestExtractMetrics_RegexTables(t *testing.T) {
	page := `<html><head><title>THS Financial Data</title></head><body>
<script type="text/template"><table id="finviz-table"><tr><th>Metric</th><th>Value</th></tr>
<tr><td>P/E</td><td>28.5</td></tr><tr><td>Price</td><td>12.40</td></tr></table></script>
</body></html>`
	got, err := ExtractMetrics(page)
	require.NoError(t, err)
	assert.Equal(t, []string{"P/E", "Price"}, got.Sources["finviz"].Keys())
	assert.Equal(t, "28.5", got.Sources["finviz"].Value("P/E"))
	assert.Equal(t, 0, got.Sources["yahoo"].Len())
	assert.Equal(t, 40, got.Health.PEScore)
}

func TestExtractMetrics_NoTitle(t *testing.T) {
	_, err := ExtractMetrics("<html><body>nothing</body></html>")
	assert.Error(t, err)
}

func TestClipboardText(t *testing.T) {
	rec := sampleRecord()
	for i := 0; i < 4; i++ {
		rec.OpenInsider.Trades = append(rec.OpenInsider.Trades, trade("Trade Type", "P - Purchase"))
	}
	text := ClipboardText(rec)

	assert.True(t, strings.HasPrefix(text, "STOCK SYMBOL: AAPL\n"))
	assert.Contains(t, text, "=== FINVIZ DATA ===\nPrice: 150.00\nChange: +1.2%\n")
	assert.Contains(t, text, "Buy/Sell Ratio: 2:1")
	assert.Contains(t, text, "Trade 1: Filing Date: 2025-01-10 - Insider Name: Doe Jane - Trade Type: P - Purchase - Qty: +100")
	assert.Contains(t, text, "Trade 5: ")
	assert.NotContains(t, text, "Trade 6: ")
	assert.Contains(t, text, "=== YAHOO FINANCE DATA ===\nsource: derived from Finviz\n")
}

func TestClipboardText_Errors(t *testing.T) {
	text := ClipboardText(&models.StockRecord{
		Symbol:      "THS",
		OpenInsider: models.InsiderError("No insider trading data found"),
		Yahoo:       models.ErrorMetrics("rate limited"),
	})
	assert.Contains(t, text, "Error: No insider trading data found")
	assert.Contains(t, text, "Error: rate limited")
}
