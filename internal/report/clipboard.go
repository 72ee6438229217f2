package report

import (
	"fmt"
	"strings"

	"github.com/bighogz/finscan/internal/models"
)

const clipboardTrades = 5

var clipboardTradeFields = []string{
	"Filing Date", "Trade Date", "Insider Name", "Title", "Trade Type", "Price", "Qty", "Value",
}

func writePairs(b *strings.Builder, m *models.Metrics) {
	m.Each(func(k, v string) bool {
		if k != models.ErrorKey {
			fmt.Fprintf(b, "%s: %s\n", k, v)
		}
		return true
	})
}

// ClipboardText is the plain-text summary behind the report's copy button.
func ClipboardText(rec *models.StockRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STOCK SYMBOL: %s\n\n", rec.Symbol)

	b.WriteString("=== FINVIZ DATA ===\n")
	writePairs(&b, rec.Finviz)
	b.WriteString("\n")

	b.WriteString("=== OPENINSIDER DATA ===\n")
	if ins := rec.OpenInsider; ins.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", ins.Error)
	} else {
		fmt.Fprintf(&b, "Buy Count: %d\n", ins.BuyCount)
		fmt.Fprintf(&b, "Sell Count: %d\n", ins.SellCount)
		fmt.Fprintf(&b, "Buy/Sell Ratio: %s\n", ins.BuySellRatio)
		if len(ins.Trades) > 0 {
			b.WriteString("\nRecent Insider Trades:\n")
			for i, t := range ins.Trades {
				if i == clipboardTrades {
					break
				}
				var parts []string
				for _, f := range clipboardTradeFields {
					if v, ok := t.Fields.Get(f); ok {
						parts = append(parts, f+": "+v)
					}
				}
				fmt.Fprintf(&b, "Trade %d: %s\n", i+1, strings.Join(parts, " - "))
			}
		}
	}
	b.WriteString("\n")

	b.WriteString("=== YAHOO FINANCE DATA ===\n")
	if reason, ok := rec.Yahoo.ErrorReason(); ok {
		fmt.Fprintf(&b, "Error: %s\n", reason)
	} else {
		writePairs(&b, rec.Yahoo)
	}

	if a := rec.Analyst; a != nil && a.Note == "" {
		b.WriteString("\n=== ANALYST RECOMMENDATIONS ===\n")
		if a.Recommendation != "" {
			fmt.Fprintf(&b, "Recommendation: %s\n", a.Recommendation)
		}
		if a.TargetPrice != "" {
			fmt.Fprintf(&b, "Target Price: %s\n", a.TargetPrice)
		}
		writePairs(&b, a.RecentActions)
	}
	return b.String()
}
