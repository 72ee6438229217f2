// Package broker provides the optional broker market-data source.
//
// The Capital.com provider is a placeholder: it performs no authenticated
// call and repackages Finviz fields. Alpaca, when configured, performs a
// real latest-trade lookup.
package broker

import (
	"context"
	"time"

	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/config"
	"github.com/bighogz/finscan/internal/models"
)

const NotConfigured = "not configured"

// Provider is one broker integration.
type Provider interface {
	Name() string
	MarketData(ctx context.Context, symbol string, finviz *models.Metrics) (models.BrokerData, error)
}

// Client picks the first configured provider.
type Client struct {
	providers []Provider
	logger    *common.Logger
}

type ClientOption func(*Client)

func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProviders replaces the providers derived from config.
func WithProviders(p ...Provider) ClientOption {
	return func(c *Client) {
		c.providers = p
	}
}

// WithClock sets the timestamp source of the Capital.com placeholder.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		for _, p := range c.providers {
			if cc, ok := p.(*CapitalCom); ok {
				cc.now = now
			}
		}
	}
}

// NewClient builds providers from cfg. Alpaca takes precedence when both
// are configured since it returns live data.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	c := &Client{logger: common.NewSilentLogger()}
	if cfg != nil {
		if cfg.HasAlpaca() {
			c.providers = append(c.providers, NewAlpaca(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret))
		}
		if cfg.HasCapitalCom() {
			c.providers = append(c.providers, NewCapitalCom(cfg.CapitalComAPIKey, cfg.CapitalComAPISecret))
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns {error: "not configured"} without any I/O when no provider
// has credentials. A provider failure falls through to the next one.
func (c *Client) Fetch(ctx context.Context, symbol string, finviz *models.Metrics) models.BrokerData {
	if len(c.providers) == 0 {
		return models.BrokerError(NotConfigured)
	}
	var last error
	for _, p := range c.providers {
		data, err := p.MarketData(ctx, symbol, finviz)
		if err == nil {
			c.logger.Info().Str("symbol", symbol).Str("provider", p.Name()).
				Int("fields", data.MarketData.Len()).Msg("broker data collected")
			return data
		}
		c.logger.Warn().Err(err).Str("symbol", symbol).Str("provider", p.Name()).Msg("broker provider failed")
		last = err
	}
	return models.BrokerError(last.Error())
}
