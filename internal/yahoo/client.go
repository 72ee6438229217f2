// Package yahoo collects Yahoo Finance fields through an ordered fallback
// chain, since Yahoo rate-limits aggressively.
package yahoo

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
	DefaultPageURL  = "https://finance.yahoo.com"
	DefaultQueryURL = "https://query1.finance.yahoo.com"

	// SourceKey tags a mapping copied out of the Finviz result.
	SourceKey         = "source"
	DerivedFromFinviz = "derived from Finviz"
	RateLimited       = "rate limited"
)

// infoFields is the allowlist copied from the extended info call.
var infoFields = []string{
	"shortName", "longName", "sector", "industry", "website", "marketCap",
	"forwardPE", "trailingPE", "beta", "dividendYield",
	"fiftyTwoWeekLow", "fiftyTwoWeekHigh",
}

// finvizFields maps Finviz labels onto Yahoo-style keys for the last resort.
var finvizFields = [][2]string{
	{"Price", "currentPrice"},
	{"Change", "priceChange"},
	{"Market Cap", "marketCap"},
	{"P/E", "trailingPE"},
	{"Forward P/E", "forwardPE"},
	{"Beta", "beta"},
	{"Volume", "volume"},
}

// profileLabels maps profile page labels onto output keys.
var profileLabels = map[string]string{
	"Sector":              "sector",
	"Sector(s)":           "sector",
	"Industry":            "industry",
	"Full Time Employees": "fullTimeEmployees",
}

// Library is the statistics API used by the first strategy. Each call
// returns whatever fields it could read, keyed by Yahoo field name.
type Library interface {
	FastInfo(ctx context.Context, symbol string) (*models.Metrics, error)
	Info(ctx context.Context, symbol string) (*models.Metrics, error)
}

type Client struct {
	pageURL  string
	queryURL string
	lib      Library
	fetcher  *httpclient.Fetcher
	logger   *common.Logger
}

type ClientOption func(*Client)

// WithPageURL sets the base for the HTML profile and statistics pages.
func WithPageURL(u string) ClientOption {
	return func(c *Client) {
		c.pageURL = strings.TrimRight(u, "/")
	}
}

// WithQueryURL sets the base for the JSON chart and quoteSummary endpoints.
func WithQueryURL(u string) ClientOption {
	return func(c *Client) {
		c.queryURL = strings.TrimRight(u, "/")
	}
}

// WithLibrary replaces the statistics library. nil disables it.
func WithLibrary(lib Library) ClientOption {
	return func(c *Client) {
		c.lib = lib
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
		pageURL:  DefaultPageURL,
		queryURL: DefaultQueryURL,
		logger:   common.NewSilentLogger(),
	}
	c.lib = NewYFinance()
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = httpclient.NewFetcher(httpclient.WithLogger(c.logger))
	}
	return c
}

// ToYahooSymbol converts class-share tickers to Yahoo form: BRK.B -> BRK-B.
func ToYahooSymbol(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "-")
}

type strategy struct {
	name string
	run  func(ctx context.Context, symbol string, finviz *models.Metrics) *models.Metrics
}

func (c *Client) strategies() []strategy {
	return []strategy{
		{"library", func(ctx context.Context, sym string, _ *models.Metrics) *models.Metrics { return c.fromLibrary(ctx, sym) }},
		{"profile", func(ctx context.Context, sym string, _ *models.Metrics) *models.Metrics { return c.fromProfile(ctx, sym) }},
		{"statistics", func(ctx context.Context, sym string, _ *models.Metrics) *models.Metrics { return c.fromStatistics(ctx, sym) }},
		{"finviz", func(_ context.Context, _ string, fv *models.Metrics) *models.Metrics { return FromFinviz(fv) }},
	}
}

// Fetch walks the chain and stops at the first strategy that yields any
// field. finviz is the already collected Finviz mapping, used only as the
// last resort. When nothing yields, the result is {error: "rate limited"}.
func (c *Client) Fetch(ctx context.Context, symbol string, finviz *models.Metrics) *models.Metrics {
	for _, s := range c.strategies() {
		if err := ctx.Err(); err != nil {
			return models.ErrorMetrics(err.Error())
		}
		m := s.run(ctx, symbol, finviz)
		if m.Len() > 0 {
			c.logger.Info().Str("symbol", symbol).Str("strategy", s.name).Int("fields", m.Len()).
				Msg("yahoo data collected")
			return m
		}
		c.logger.Debug().Str("symbol", symbol).Str("strategy", s.name).Msg("yahoo strategy yielded nothing")
	}
	c.logger.Warn().Str("symbol", symbol).Msg("yahoo: every strategy failed")
	return models.ErrorMetrics(RateLimited)
}

func (c *Client) fromLibrary(ctx context.Context, symbol string) *models.Metrics {
	out := models.NewMetrics()
	ysym := ToYahooSymbol(symbol)
	if c.lib != nil {
		if err := c.fetcher.Wait(ctx); err != nil {
			return out
		}
		if fast, err := c.lib.FastInfo(ctx, ysym); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("yahoo fast info failed")
		} else {
			fast.Each(func(k, v string) bool {
				out.Set(k, v)
				return true
			})
		}
		if err := c.fetcher.Wait(ctx); err != nil {
			return out
		}
		if info, err := c.lib.Info(ctx, ysym); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("yahoo info failed")
		} else {
			for _, k := range infoFields {
				if v, ok := info.Get(k); ok && v != "" {
					out.Set(k, v)
				}
			}
		}
	}
	if out.Len() > 0 {
		return out
	}
	return c.fromHistory(ctx, ysym)
}

// fromHistory reads the last two daily closes from the chart endpoint.
func (c *Client) fromHistory(ctx context.Context, ysym string) *models.Metrics {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=2d&interval=1d", c.queryURL, url.PathEscape(ysym))
	body, err := c.fetcher.Get(ctx, u, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", ysym).Msg("yahoo history failed")
		return models.NewMetrics()
	}
	return parseChart(body)
}

func (c *Client) page(ctx context.Context, symbol, section string) ([]byte, error) {
	u := fmt.Sprintf("%s/quote/%s/%s", c.pageURL, url.PathEscape(ToYahooSymbol(symbol)), section)
	return c.fetcher.Get(ctx, u, nil)
}

func (c *Client) fromProfile(ctx context.Context, symbol string) *models.Metrics {
	body, err := c.page(ctx, symbol, "profile")
	if err == nil {
		var doc *goquery.Document
		if doc, err = goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			return ParseProfile(doc)
		}
	}
	c.logger.Warn().Err(err).Str("symbol", symbol).Msg("yahoo profile failed")
	return models.NewMetrics()
}

// fromStatistics reads label/value rows, falling back to a regex scan when
// the rows are not inside a well-formed table.
func (c *Client) fromStatistics(ctx context.Context, symbol string) *models.Metrics {
	body, err := c.page(ctx, symbol, "key-statistics")
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("yahoo statistics failed")
		return models.NewMetrics()
	}
	return extract.Pairs(string(body))
}

// ParseProfile reads the company name from the first heading and sector,
// industry and head count from label spans followed by their value.
func ParseProfile(doc *goquery.Document) *models.Metrics {
	out := models.NewMetrics()
	if h1 := extract.Text(doc.Find("h1").First().Text()); h1 != "" {
		name, _, _ := strings.Cut(h1, "(")
		if name = strings.TrimSpace(name); name != "" {
			out.Set("shortName", name)
		}
	}
	doc.Find("span, dt, strong").Each(func(_ int, s *goquery.Selection) {
		key, ok := profileLabels[strings.TrimSuffix(extract.Text(s.Text()), ":")]
		if !ok || out.Has(key) {
			return
		}
		if v := extract.Text(s.Next().Text()); v != "" {
			out.Set(key, v)
		}
	})
	return out
}

// FromFinviz copies the fixed Finviz subset under Yahoo-style keys. The
// result is empty unless at least one field was present.
func FromFinviz(finviz *models.Metrics) *models.Metrics {
	out := models.NewMetrics()
	if !finviz.Usable() {
		return out
	}
	out.Set(SourceKey, DerivedFromFinviz)
	for _, f := range finvizFields {
		if v, ok := finviz.Get(f[0]); ok {
			out.Set(f[1], v)
		}
	}
	if out.Len() == 1 {
		return models.NewMetrics()
	}
	return out
}
