// Package pipeline wires the sources into an aggregator and turns one
// collection into stored report artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bighogz/finscan/internal/aggregator"
	"github.com/bighogz/finscan/internal/broker"
	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/config"
	"github.com/bighogz/finscan/internal/finviz"
	"github.com/bighogz/finscan/internal/httpclient"
	"github.com/bighogz/finscan/internal/models"
	"github.com/bighogz/finscan/internal/openinsider"
	"github.com/bighogz/finscan/internal/report"
	"github.com/bighogz/finscan/internal/store"
	"github.com/bighogz/finscan/internal/yahoo"
)

const (
	FormatHTML = "html"
	FormatJSON = "json"

	analystActions = 5
)

// ErrWrite marks a failure to produce an output file.
var ErrWrite = errors.New("write report")

// NewAggregator builds the production source chain from cfg. Every client
// shares one Fetcher so the politeness delay and rate limit apply across
// sources.
func NewAggregator(cfg *config.Config, logger *common.Logger) *aggregator.Aggregator {
	fetcher := httpclient.NewFetcher(
		httpclient.WithClient(&http.Client{Timeout: cfg.RequestTimeout}),
		httpclient.WithDelay(cfg.MinDelay, cfg.MaxDelay),
		httpclient.WithRateLimit(cfg.RateLimit),
		httpclient.WithLogger(logger),
	)
	y := yahoo.NewClient(yahoo.WithFetcher(fetcher), yahoo.WithLogger(logger))
	return aggregator.New(
		finviz.NewClient(finviz.WithFetcher(fetcher), finviz.WithLogger(logger)),
		broker.NewClient(cfg, broker.WithLogger(logger)),
		openinsider.NewClient(openinsider.WithFetcher(fetcher), openinsider.WithLogger(logger)),
		y,
		aggregator.WithAnalystSource(y, analystActions),
		aggregator.WithLogger(logger),
	)
}

// Collector is satisfied by *aggregator.Aggregator.
type Collector interface {
	Collect(ctx context.Context, symbol string) (*models.StockRecord, error)
}

// Formats selects the artifacts to write. The zero value means HTML only.
type Formats struct {
	HTML bool
	JSON bool
}

func (f Formats) list() []string {
	var out []string
	if f.HTML || !f.JSON {
		out = append(out, FormatHTML)
	}
	if f.JSON {
		out = append(out, FormatJSON)
	}
	return out
}

// Artifact is one written file.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Result is what one Run produced.
type Result struct {
	Record    *models.StockRecord `json:"record"`
	Health    report.Health       `json:"health"`
	Artifacts []Artifact          `json:"artifacts"`
}

type Runner struct {
	collector Collector
	store     *store.Store
	index     *store.Index
	logger    *common.Logger
}

type Option func(*Runner)

// WithIndex records every written artifact in idx.
func WithIndex(idx *store.Index) Option {
	return func(r *Runner) {
		r.index = idx
	}
}

func WithLogger(l *common.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(c Collector, s *store.Store, opts ...Option) *Runner {
	r := &Runner{collector: c, store: s, logger: common.NewSilentLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func encode(rec *models.StockRecord, format string) ([]byte, error) {
	if format == FormatJSON {
		return report.RenderJSON(rec)
	}
	return report.Render(rec)
}

// target picks where one artifact goes. An empty output means temp storage.
// A directory output receives the conventional filename. Otherwise output is
// the file path, with its extension swapped when several formats are written.
func target(rec *models.StockRecord, format, output string, multi bool) (name, path string) {
	name = store.Filename(rec.Symbol, rec.CollectedAt.Local(), format)
	switch {
	case output == "":
		return name, ""
	case isDir(output):
		return name, filepath.Join(output, name)
	case multi:
		path = strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
	default:
		path = output
	}
	return filepath.Base(path), path
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Run collects symbol and writes the requested artifacts. Only an invalid
// symbol, cancellation or a write failure is returned as an error; source
// failures live inside the record.
func (r *Runner) Run(ctx context.Context, symbol string, formats Formats, output string) (*Result, error) {
	rec, err := r.collector.Collect(ctx, symbol)
	if err != nil {
		return nil, err
	}
	res := &Result{Record: rec, Health: report.HealthFromMetrics(rec.Merged())}
	list := formats.list()
	for _, format := range list {
		body, err := encode(rec, format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrite, err)
		}
		name, path := target(rec, format, output, len(list) > 1)
		if path == "" {
			path, err = r.store.WriteTemp(name, body)
		} else {
			err = store.WriteFile(path, body)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrite, err)
		}
		res.Artifacts = append(res.Artifacts, Artifact{Name: name, Path: path, Format: format})
		r.logger.Info().Str("symbol", rec.Symbol).Str("path", path).Msg("report written")
		r.record(ctx, rec, res.Health, name, format)
	}
	return res, nil
}

// record is best effort; the files remain the source of truth.
func (r *Runner) record(ctx context.Context, rec *models.StockRecord, h report.Health, name, format string) {
	if r.index == nil {
		return
	}
	err := r.index.Record(ctx, store.Entry{
		Name:        name,
		Symbol:      rec.Symbol,
		RunID:       rec.RunID,
		Format:      format,
		CollectedAt: rec.CollectedAt,
		HealthTier:  h.Tier,
		HealthScore: h.Overall,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("name", name).Msg("index update failed")
	}
}
