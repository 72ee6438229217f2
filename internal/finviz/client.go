// Package finviz scrapes the Finviz quote page snapshot table.
package finviz

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/extract"
	"github.com/bighogz/finscan/internal/httpclient"
	"github.com/bighogz/finscan/internal/models"
)

const (
	DefaultBaseURL = "https://finviz.com"
	snapshotClass  = "snapshot-table2"
)

type Client struct {
	baseURL string
	fetcher *httpclient.Fetcher
	logger  *common.Logger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithFetcher(f *httpclient.Fetcher) ClientOption {
	return func(c *Client) {
		c.fetcher = f
	}
}

func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = httpclient.NewFetcher(httpclient.WithLogger(c.logger))
	}
	return c
}

func (c *Client) quoteURL(symbol string) string {
	return fmt.Sprintf("%s/quote.ashx?t=%s", c.baseURL, url.QueryEscape(symbol))
}

// Fetch never fails: a page that cannot be loaded or parsed yields an empty
// mapping, which callers read as "no data".
func (c *Client) Fetch(ctx context.Context, symbol string) *models.Metrics {
	body, err := c.fetcher.Get(ctx, c.quoteURL(symbol), nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("finviz fetch failed")
		return models.NewMetrics()
	}
	m, err := ParseQuote(body)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("finviz parse failed")
		return models.NewMetrics()
	}
	if m.Len() == 0 {
		c.logger.Warn().Str("symbol", symbol).Msg("finviz snapshot table not found")
	} else {
		c.logger.Info().Str("symbol", symbol).Int("fields", m.Len()).Msg("finviz data collected")
	}
	return m
}

// ParseQuote reads the snapshot table in label/value cell pairs and derives
// company name and exchange from the page title.
func ParseQuote(page []byte) (*models.Metrics, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse finviz page: %w", err)
	}
	out := models.NewMetrics()
	if table := doc.Find("table." + snapshotClass).First(); table.Length() > 0 {
		out = extract.CellPairs(table)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if parts := strings.Split(title, " - "); len(parts) > 1 {
		out.Set("Company Name", strings.TrimSpace(parts[0]))
		if len(parts) > 2 {
			out.Set("Exchange", strings.TrimSpace(parts[2]))
		}
	}
	return out, nil
}
