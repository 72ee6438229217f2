package broker

import (
	"context"
	"time"

	"github.com/bighogz/finscan/internal/models"
)

const capitalComNote = "Market data from Finviz (Capital.com API requires full authentication)"

// capitalComFields are the Finviz labels repackaged as market data.
var capitalComFields = []string{"Price", "Change", "Market Cap", "P/E", "Beta", "Volume"}

// CapitalCom is a stub. A real integration would open an authenticated
// session here; until then it relabels Finviz fields.
type CapitalCom struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewCapitalCom(apiKey, apiSecret string) *CapitalCom {
	return &CapitalCom{apiKey: apiKey, apiSecret: apiSecret, now: time.Now}
}

func (c *CapitalCom) Name() string { return "capital.com" }

func (c *CapitalCom) MarketData(_ context.Context, symbol string, finviz *models.Metrics) (models.BrokerData, error) {
	md := models.NewMetrics()
	if finviz.Usable() {
		for _, k := range capitalComFields {
			if v, ok := finviz.Get(k); ok {
				md.Set(k, v)
			}
		}
	}
	return models.BrokerData{
		Provider:       c.Name(),
		Symbol:         symbol,
		Status:         "market_data",
		APIKeyProvided: c.apiKey != "",
		MarketData:     md,
		Timestamp:      c.now().UTC().Truncate(time.Second),
		Note:           capitalComNote,
	}, nil
}
