// Package openinsider scrapes the OpenInsider screener for recent insider
// trades of one symbol.
package openinsider

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/extract"
	"github.com/bighogz/finscan/internal/httpclient"
	"github.com/bighogz/finscan/internal/models"
)

const (
	DefaultBaseURL = "http://openinsider.com"
	tableClass     = "tinytable"
	minRowCells    = 7
	// filingWindowDays covers roughly the last two years of filings.
	filingWindowDays = "730"
	maxRows          = "100"
)

const (
	errFetch   = "Failed to fetch data"
	errNoTable = "No insider trading data found"
)

// CanonicalHeaders is the screener's column order, used when the page's own
// header row is missing or unrecognisable.
var CanonicalHeaders = []string{
	"X", "Filing Date", "Trade Date", "Ticker", "Insider Name", "Title",
	"Trade Type", "Price", "Qty", "Owned", "ΔOwn", "Value",
	"1d", "1w", "1m", "6m",
}

var droppedColumns = map[string]bool{
	"X": true, "1d": true, "1w": true, "1m": true, "6m": true,
}

var errTableNotFound = errors.New("openinsider: no insider trading table")

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

func (c *Client) screenerURL(symbol string) string {
	params := url.Values{}
	params.Set("s", symbol)
	params.Set("fd", filingWindowDays)
	params.Set("td", "0")
	params.Set("xp", "1")
	params.Set("xs", "1")
	params.Set("sic1", "-1")
	params.Set("sicl", "100")
	params.Set("sich", "9999")
	params.Set("grp", "0")
	params.Set("sortcol", "0")
	params.Set("cnt", maxRows)
	params.Set("page", "1")
	return c.baseURL + "/screener?" + params.Encode()
}

// Fetch returns the tallied trades or an error-only InsiderData.
func (c *Client) Fetch(ctx context.Context, symbol string) models.InsiderData {
	body, err := c.fetcher.Get(ctx, c.screenerURL(symbol), nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("openinsider fetch failed")
		return models.InsiderError(errFetch)
	}
	trades, err := ParseTrades(body)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("openinsider parse failed")
		return models.InsiderError(errNoTable)
	}
	data := models.NewInsiderData(trades)
	c.logger.Info().Str("symbol", symbol).
		Int("trades", data.TradeCount).
		Int("buys", data.BuyCount).
		Int("sells", data.SellCount).
		Msg("openinsider data collected")
	return data
}

// ParseTrades finds the trades table and maps each row of at least seven
// cells through the header row, dropping the flag and return columns.
func ParseTrades(page []byte) ([]models.InsiderTrade, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	table := findTable(doc)
	if table == nil {
		return nil, errTableNotFound
	}

	rows := table.Find("tr")
	headers := cellTexts(rows.First())
	if !strings.Contains(strings.Join(headers, " "), "Filing Date") {
		headers = CanonicalHeaders
	}

	trades := make([]models.InsiderTrade, 0, rows.Length())
	rows.Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) < minRowCells {
			return
		}
		fields := models.NewMetrics()
		for i, v := range cells {
			if i >= len(headers) {
				break
			}
			if droppedColumns[headers[i]] {
				continue
			}
			fields.Set(headers[i], v)
		}
		if fields.Len() > 0 {
			trades = append(trades, models.NewInsiderTrade(fields))
		}
	})
	return trades, nil
}

// findTable prefers the known class, then the first table whose header row
// mentions both filings and trades or insiders.
func findTable(doc *goquery.Document) *goquery.Selection {
	if t := doc.Find("table." + tableClass).First(); t.Length() > 0 {
		return t
	}
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		header := strings.ToLower(strings.Join(cellTexts(t.Find("tr").First()), " "))
		if strings.Contains(header, "filing") &&
			(strings.Contains(header, "trade") || strings.Contains(header, "insider")) {
			found = t
			return false
		}
		return true
	})
	return found
}

func cellTexts(row *goquery.Selection) []string {
	cells := row.ChildrenFiltered("td, th")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, extract.Text(cell.Text()))
	})
	return out
}
