// Command finscan-server is a local HTTP shell over the scraper: it runs
// scrapes on request and lists, keeps, deletes and serves stored reports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bighogz/finscan/internal/aggregator"
	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/config"
	"github.com/bighogz/finscan/internal/pipeline"
	"github.com/bighogz/finscan/internal/report"
	"github.com/bighogz/finscan/internal/store"
	"github.com/bighogz/finscan/internal/telemetry"
)

const scrapeInterval = 5 * time.Second

type server struct {
	runner   *pipeline.Runner
	store    *store.Store
	index    *store.Index
	adminKey string
	limiter  *rateLimiter
	logger   *common.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scrape", securityHeaders(allowMethod(http.MethodPost,
		requireAdmin(s.adminKey, rateLimited(s.limiter, s.handleScrape)))))
	mux.HandleFunc("/api/reports", securityHeaders(s.handleReports))
	mux.HandleFunc("/api/reports/save", securityHeaders(allowMethod(http.MethodPost,
		requireAdmin(s.adminKey, s.handleSave))))
	mux.HandleFunc("/api/reports/metrics", securityHeaders(allowMethod(http.MethodGet, s.handleMetrics)))
	mux.HandleFunc("/reports/", securityHeaders(allowMethod(http.MethodGet, s.serveReport)))
	mux.HandleFunc("/api/health", securityHeaders(handleHealth))
	return mux
}

func main() {
	cfg, err := config.Load(config.Path())
	logger := common.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Warn().Err(err).Msg("config ignored")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(cfg.Trace, os.Stderr)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup")
	}
	defer shutdownTracing(context.Background())

	st := store.New(cfg.DataDir)
	s := &server{
		store:    st,
		adminKey: cfg.AdminAPIKey,
		limiter:  newRateLimiter(scrapeInterval),
		logger:   logger,
	}
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.IndexPath != "" {
		idx, err := store.OpenIndex(ctx, cfg.IndexPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.IndexPath).Msg("open report index")
		}
		defer idx.Close()
		s.index = idx
		opts = append(opts, pipeline.WithIndex(idx))
	}
	s.runner = pipeline.NewRunner(pipeline.NewAggregator(cfg, logger), st, opts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server")
	}
}

func formatsFrom(v string) pipeline.Formats {
	switch strings.ToLower(v) {
	case "json":
		return pipeline.Formats{JSON: true}
	case "both":
		return pipeline.Formats{HTML: true, JSON: true}
	default:
		return pipeline.Formats{HTML: true}
	}
}

// handleScrape runs one collection in the request. A client that goes away
// cancels it and nothing is written.
func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.runner.Run(r.Context(), q.Get("symbol"), formatsFrom(q.Get("format")), "")
	switch {
	case errors.Is(err, aggregator.ErrInvalidSymbol):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Str("symbol", q.Get("symbol")).Msg("scrape failed")
		jsonError(w, http.StatusInternalServerError, "scrape failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"symbol":    res.Record.Symbol,
		"run_id":    res.Record.RunID,
		"health":    res.Health,
		"artifacts": res.Artifacts,
	})
}

type reportListing struct {
	store.Report
	Health *report.Health `json:"health,omitempty"`
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReports(w, r)
	case http.MethodDelete:
		requireAdmin(s.adminKey, s.deleteReport)(w, r)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("list reports")
		jsonError(w, http.StatusInternalServerError, "could not list reports")
		return
	}
	out := make([]reportListing, 0, len(reports))
	for _, rep := range reports {
		l := reportListing{Report: rep}
		if rep.Format == pipeline.FormatHTML {
			if body, _, err := s.store.Read(rep.Name); err == nil {
				h := report.HealthFromHTML(string(body))
				l.Health = &h
			}
		}
		out = append(out, l)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"reports": out})
}

func (s *server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrBadName):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNotInTemp):
		jsonError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("report store")
		jsonError(w, http.StatusInternalServerError, "report store error")
	}
}

func (s *server) handleSave(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	path, err := s.store.Save(name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "saved", "path": path})
}

func (s *server) deleteReport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if err := s.store.Delete(name); err != nil {
		s.storeError(w, err)
		return
	}
	if s.index != nil {
		if err := s.index.Remove(r.Context(), name); err != nil {
			s.logger.Warn().Err(err).Str("name", name).Msg("index remove failed")
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body, rep, err := s.store.Read(r.URL.Query().Get("file"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if rep.Format != pipeline.FormatHTML {
		jsonError(w, http.StatusBadRequest, "metrics are extracted from HTML reports only")
		return
	}
	m, err := report.ExtractMetrics(string(body))
	if err != nil {
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, m)
}

func (s *server) serveReport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/reports/")
	body, rep, err := s.store.Read(name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if rep.Format == pipeline.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", reportCSP)
	}
	w.Write(body)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}
