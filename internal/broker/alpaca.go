package broker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/bighogz/finscan/internal/models"
)

// tradeSource is the slice of the Alpaca market data client used here.
type tradeSource interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// Alpaca reads the latest trade from Alpaca market data.
type Alpaca struct {
	md tradeSource
}

func NewAlpaca(apiKey, apiSecret string) *Alpaca {
	return &Alpaca{md: marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})}
}

func (a *Alpaca) Name() string { return "alpaca" }

func (a *Alpaca) MarketData(ctx context.Context, symbol string, _ *models.Metrics) (models.BrokerData, error) {
	if err := ctx.Err(); err != nil {
		return models.BrokerData{}, err
	}
	trade, err := a.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return models.BrokerData{}, fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
	}
	if trade == nil {
		return models.BrokerData{}, fmt.Errorf("alpaca latest trade %s: no trade", symbol)
	}
	md := models.NewMetrics()
	md.Set("Price", strconv.FormatFloat(trade.Price, 'f', -1, 64))
	md.Set("Size", strconv.FormatUint(uint64(trade.Size), 10))
	md.Set("Exchange", trade.Exchange)
	return models.BrokerData{
		Provider:       a.Name(),
		Symbol:         symbol,
		Status:         "market_data",
		APIKeyProvided: true,
		MarketData:     md,
		Timestamp:      trade.Timestamp.UTC(),
		Note:           "Latest trade from Alpaca market data",
	}, nil
}
