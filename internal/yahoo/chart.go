package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bighogz/finscan/internal/models"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseChart takes currentPrice and previousClose from the daily closes,
// skipping null entries Yahoo emits for halted sessions.
func parseChart(body []byte) *models.Metrics {
	out := models.NewMetrics()
	if !gjson.ValidBytes(body) {
		return out
	}
	var closes []float64
	gjson.GetBytes(body, "chart.result.0.indicators.quote.0.close").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.Number {
			closes = append(closes, v.Float())
		}
		return true
	})
	if n := len(closes); n > 0 {
		out.Set("currentPrice", formatFloat(closes[n-1]))
		if n > 1 {
			out.Set("previousClose", formatFloat(closes[n-2]))
		}
	}
	return out
}

var gradeActions = map[string]string{
	"up":   "Upgrade",
	"down": "Downgrade",
	"main": "Maintains",
	"init": "Initiated",
	"reit": "Reiterated",
}

type gradeChange struct {
	when   time.Time
	firm   string
	action string
}

// AnalystActions returns up to limit of the most recent rating changes,
// keyed by date as "firm: action". Failures yield an empty mapping.
func (c *Client) AnalystActions(ctx context.Context, symbol string, limit int) *models.Metrics {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=upgradeDowngradeHistory",
		c.queryURL, url.PathEscape(ToYahooSymbol(symbol)))
	body, err := c.fetcher.Get(ctx, u, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("yahoo analyst actions failed")
		return models.NewMetrics()
	}
	return parseGradeHistory(body, limit)
}

func parseGradeHistory(body []byte, limit int) *models.Metrics {
	out := models.NewMetrics()
	if limit <= 0 || !gjson.ValidBytes(body) {
		return out
	}
	var changes []gradeChange
	gjson.GetBytes(body, "quoteSummary.result.0.upgradeDowngradeHistory.history").ForEach(func(_, h gjson.Result) bool {
		firm := strings.TrimSpace(h.Get("firm").String())
		if firm == "" {
			return true
		}
		action := gradeActions[h.Get("action").String()]
		if action == "" {
			action = h.Get("action").String()
		}
		if to := strings.TrimSpace(h.Get("toGrade").String()); to != "" {
			action = strings.TrimSpace(action + " " + to)
		}
		changes = append(changes, gradeChange{
			when:   time.Unix(h.Get("epochGradeDate").Int(), 0).UTC(),
			firm:   firm,
			action: action,
		})
		return true
	})
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].when.After(changes[j].when) })
	for _, ch := range changes {
		if out.Len() >= limit {
			break
		}
		key := ch.when.Format("2006-01-02")
		if out.Has(key) {
			continue
		}
		out.Set(key, ch.firm+": "+ch.action)
	}
	return out
}
