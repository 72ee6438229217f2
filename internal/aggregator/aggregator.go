package aggregator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/models"
	"github.com/bighogz/finscan/internal/telemetry"
)

// ErrInvalidSymbol is returned for an empty or non-alphabetic symbol.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolRe = regexp.MustCompile(`^[A-Z][A-Z.]*$`)

const defaultActionLimit = 5

type FinvizSource interface {
	Fetch(ctx context.Context, symbol string) *models.Metrics
}

type BrokerSource interface {
	Fetch(ctx context.Context, symbol string, finviz *models.Metrics) models.BrokerData
}

type InsiderSource interface {
	Fetch(ctx context.Context, symbol string) models.InsiderData
}

type YahooSource interface {
	Fetch(ctx context.Context, symbol string, finviz *models.Metrics) *models.Metrics
}

// AnalystSource supplies recent rating changes keyed by date.
type AnalystSource interface {
	AnalystActions(ctx context.Context, symbol string, limit int) *models.Metrics
}

// Aggregator runs the sources for one symbol in a fixed order and builds a
// StockRecord. It holds no per-request state and is safe for concurrent use.
type Aggregator struct {
	finviz  FinvizSource
	broker  BrokerSource
	insider InsiderSource
	yahoo   YahooSource
	analyst AnalystSource

	actionLimit int
	logger      *common.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

type Option func(*Aggregator)

func WithLogger(l *common.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// WithAnalystSource enables the recent-actions enrichment.
func WithAnalystSource(s AnalystSource, limit int) Option {
	return func(a *Aggregator) {
		a.analyst = s
		if limit > 0 {
			a.actionLimit = limit
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		a.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func WithRunIDs(newID func() string) Option {
	return func(a *Aggregator) {
		a.newID = newID
	}
}

func New(finviz FinvizSource, broker BrokerSource, insider InsiderSource, yahoo YahooSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		finviz:      finviz,
		broker:      broker,
		insider:     insider,
		yahoo:       yahoo,
		actionLimit: defaultActionLimit,
		logger:      common.NewSilentLogger(),
		tracer:      telemetry.Tracer(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NormalizeSymbol trims and uppercases raw and checks it is a ticker.
func NormalizeSymbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return s, nil
}

// step runs one source inside its own span.
func step[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) T) T {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	return fn(ctx)
}

// Collect fetches Finviz, broker, OpenInsider and Yahoo in that order, then
// runs the derived passes over the resolved mappings. Source failures are
// recorded in their slot. Only an invalid symbol or a cancelled ctx returns
// an error, and then no record is returned.
func (a *Aggregator) Collect(ctx context.Context, raw string) (*models.StockRecord, error) {
	symbol, err := NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}
	rec := &models.StockRecord{
		Symbol:      symbol,
		RunID:       a.newID(),
		CollectedAt: a.now().UTC(),
	}
	log := a.logger.WithField("run_id", rec.RunID).WithField("symbol", symbol)
	ctx, span := a.tracer.Start(ctx, "collect", trace.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("run_id", rec.RunID),
	))
	defer span.End()
	log.Info().Msg("collecting")

	rec.Finviz = step(ctx, a.tracer, "finviz", func(ctx context.Context) *models.Metrics {
		if m := a.finviz.Fetch(ctx, symbol); m != nil {
			return m
		}
		return models.NewMetrics()
	})
	rec.Broker = step(ctx, a.tracer, "broker", func(ctx context.Context) models.BrokerData {
		return a.broker.Fetch(ctx, symbol, rec.Finviz)
	})
	rec.OpenInsider = step(ctx, a.tracer, "openinsider", func(ctx context.Context) models.InsiderData {
		return a.insider.Fetch(ctx, symbol)
	})
	rec.Yahoo = step(ctx, a.tracer, "yahoo", func(ctx context.Context) *models.Metrics {
		if m := a.yahoo.Fetch(ctx, symbol, rec.Finviz); m != nil {
			return m
		}
		return models.ErrorMetrics("no data")
	})
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("collection abandoned")
		return nil, err
	}

	var actions *models.Metrics
	if a.analyst != nil {
		actions = step(ctx, a.tracer, "analyst_actions", func(ctx context.Context) *models.Metrics {
			return a.analyst.AnalystActions(ctx, symbol, a.actionLimit)
		})
	}
	rec.Analyst = AnalystRecommendations(rec.Finviz, actions)
	rec.Financials = FinancialSummary(rec.Finviz)
	rec.Competitors = Competitors(symbol, rec.Yahoo, rec.Finviz)
	rec.Groups = models.GroupMetrics(rec.Merged())
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("collection abandoned")
		return nil, err
	}

	log.Info().
		Int("finviz_fields", rec.Finviz.Len()).
		Int("insider_trades", rec.OpenInsider.TradeCount).
		Bool("yahoo_ok", !rec.Yahoo.HasError()).
		Bool("broker_ok", rec.Broker.Error == "").
		Msg("collected")
	return rec, nil
}
