package report

import "github.com/bighogz/finscan/internal/models"

// NotAvailable is shown for a key stat no source supplied.
const NotAvailable = "N/A"

// KeyStat is one headline figure and the labels tried, in order, to fill it.
type KeyStat struct {
	ID     string
	Label  string
	Labels []string
}

// KeyStats is the headline panel. Finviz labels come first, then Yahoo keys.
var KeyStats = []KeyStat{
	{ID: "marketCap", Label: "Market Cap", Labels: []string{"Market Cap", "marketCap"}},
	{ID: "peRatio", Label: "P/E Ratio", Labels: []string{"P/E", "trailingPE", "forwardPE"}},
	{ID: "stockPrice", Label: "Price", Labels: []string{"Price", "currentPrice", "Last Price"}},
	{ID: "priceChange", Label: "Change", Labels: []string{"Change", "priceChange"}},
	{ID: "volume", Label: "Volume", Labels: []string{"Volume", "volume", "Avg Volume"}},
	{ID: "beta", Label: "Beta", Labels: []string{"Beta", "beta"}},
}

// ResolvedStat is a KeyStat with its value and the label that supplied it.
type ResolvedStat struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// Resolve returns the value of the first label present in merged.
func Resolve(merged *models.Metrics, labels []string) (value, label string, ok bool) {
	for _, l := range labels {
		if v, found := merged.Get(l); found {
			return v, l, true
		}
	}
	return "", "", false
}

// ResolveKeyStats fills the headline panel from a merged mapping.
func ResolveKeyStats(merged *models.Metrics) []ResolvedStat {
	out := make([]ResolvedStat, 0, len(KeyStats))
	for _, ks := range KeyStats {
		rs := ResolvedStat{ID: ks.ID, Label: ks.Label, Value: NotAvailable}
		if v, l, ok := Resolve(merged, ks.Labels); ok {
			rs.Value, rs.Source = v, l
		}
		out = append(out, rs)
	}
	return out
}
