package report

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bighogz/finscan/internal/extract"
	"github.com/bighogz/finscan/internal/models"
)

// Health tiers, weakest first.
const (
	TierWeak    = "Weak"
	TierCaution = "Caution"
	TierNeutral = "Neutral"
	TierGood    = "Good"
	TierStrong  = "Strong"
)

var tiers = []string{TierWeak, TierCaution, TierNeutral, TierGood, TierStrong}

// missingScore is used for any component whose input is absent.
const missingScore = 50

var (
	peLabels     = []string{"P/E", "trailingPE"}
	changeLabels = []string{"Change", "priceChange"}
	recomLabels  = []string{"Recom"}

	peValue     = regexp.MustCompile(`(-?\d+(?:\.\d+)?)`)
	changeValue = regexp.MustCompile(`([+-]?\d+(?:\.\d+)?)\s*%`)
	recomValue  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// Health is a display-only composite of valuation, momentum and analyst
// sentiment. It is not a trading signal.
type Health struct {
	PEScore             int     `json:"pe_score"`
	ChangeScore         int     `json:"change_score"`
	RecommendationScore int     `json:"recommendation_score"`
	Overall             float64 `json:"overall"`
	Tier                string  `json:"tier"`
}

// tierRank orders tiers from 0 (Weak) to 4 (Strong); unknown tiers are -1.
func tierRank(tier string) int {
	for i, t := range tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func peScore(pe *decimal.Decimal) int {
	switch {
	case pe == nil:
		return missingScore
	case pe.LessThanOrEqual(decimal.Zero):
		return 20
	case pe.LessThan(d(10)):
		return 80
	case pe.LessThan(d(15)):
		return 70
	case pe.LessThan(d(20)):
		return 60
	case pe.LessThan(d(25)):
		return 50
	case pe.LessThan(d(50)):
		return 40
	default:
		return 30
	}
}

func changeScore(pct *decimal.Decimal) int {
	switch {
	case pct == nil:
		return missingScore
	case pct.GreaterThan(d(5)):
		return 90
	case pct.GreaterThan(d(2)):
		return 75
	case pct.GreaterThan(decimal.Zero):
		return 60
	case pct.GreaterThan(d(-2)):
		return 45
	case pct.GreaterThan(d(-5)):
		return 30
	default:
		return 15
	}
}

// recommendationScore inverts the 1 (strong buy) to 5 (strong sell) scale.
// Every band, including 3.0 < r <= 4.0, compares the recommendation itself.
func recommendationScore(r *decimal.Decimal) int {
	switch {
	case r == nil:
		return missingScore
	case r.LessThanOrEqual(d(1.5)):
		return 90
	case r.LessThanOrEqual(d(2.2)):
		return 75
	case r.LessThanOrEqual(d(3.0)):
		return 50
	case r.LessThanOrEqual(d(4.0)):
		return 30
	default:
		return 15
	}
}

func tierFor(overall decimal.Decimal) string {
	switch {
	case overall.GreaterThanOrEqual(d(75)):
		return TierStrong
	case overall.GreaterThanOrEqual(d(60)):
		return TierGood
	case overall.GreaterThanOrEqual(d(45)):
		return TierNeutral
	case overall.GreaterThanOrEqual(d(30)):
		return TierCaution
	default:
		return TierWeak
	}
}

// Score combines the three inputs; nil means the input was not found.
func Score(pe, changePct, recom *decimal.Decimal) Health {
	h := Health{
		PEScore:             peScore(pe),
		ChangeScore:         changeScore(changePct),
		RecommendationScore: recommendationScore(recom),
	}
	sum := decimal.NewFromInt(int64(h.PEScore + h.ChangeScore + h.RecommendationScore))
	overall := sum.Div(decimal.NewFromInt(3))
	h.Overall = overall.Round(1).InexactFloat64()
	h.Tier = tierFor(overall)
	return h
}

func parse(raw string, pattern *regexp.Regexp) *decimal.Decimal {
	m := pattern.FindStringSubmatch(strings.ReplaceAll(raw, ",", ""))
	if m == nil {
		return nil
	}
	v, err := decimal.NewFromString(strings.TrimPrefix(m[1], "+"))
	if err != nil {
		return nil
	}
	return &v
}

func firstParsed(m *models.Metrics, labels []string, pattern *regexp.Regexp) *decimal.Decimal {
	for _, l := range labels {
		if raw, ok := m.Get(l); ok {
			if v := parse(raw, pattern); v != nil {
				return v
			}
		}
	}
	return nil
}

// HealthFromMetrics scores a merged record mapping.
func HealthFromMetrics(merged *models.Metrics) Health {
	return Score(
		firstParsed(merged, peLabels, peValue),
		firstParsed(merged, changeLabels, changeValue),
		firstParsed(merged, recomLabels, recomValue),
	)
}

// HealthFromHTML scores a rendered report without its StockRecord.
func HealthFromHTML(page string) Health {
	get := func(labels []string, pattern *regexp.Regexp) *decimal.Decimal {
		for _, l := range labels {
			raw, ok := extract.ByLabelPattern(page, []string{l}, nil)
			if !ok {
				continue
			}
			if v := parse(raw, pattern); v != nil {
				return v
			}
		}
		return nil
	}
	return Score(get(peLabels, peValue), get(changeLabels, changeValue), get(recomLabels, recomValue))
}
