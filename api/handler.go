// Package api exposes single and bulk lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/scheduler"
	"github.com/debugsito/scrap-sunat/scraper"
	"github.com/debugsito/scrap-sunat/sheets"
)

// BatchSource reads the raw queries of a bulk run
type BatchSource interface {
	ReadColumn(rangeA1, column string) ([]string, error)
}

// BatchConfig locates the bulk input and output. Source and Exporter are optional.
type BatchConfig struct {
	Source        BatchSource
	Exporter      scheduler.Exporter
	InputRange    string
	InputColumn   string
	SpreadsheetID string
}

// Handler serves the lookup endpoints
type Handler struct {
	searcher scraper.Searcher
	batch    BatchConfig
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new lookup Handler
func New(searcher scraper.Searcher, batch BatchConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{searcher: searcher, batch: batch, logger: logger, now: time.Now}
}

// Register registers the lookup routes with the chi router
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(h.requestLogger)
		r.Get("/consulta/{valor}", h.handleLookup)
		r.Get("/consulta-lote", h.handleBatch)
	})
}

// NewRouter returns a chi router with the lookup routes mounted
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

type lookupResponse struct {
	Value   string               `json:"valor"`
	Results []models.ResultEntry `json:"resultados"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// handleLookup runs one search. Query params: tipo, tipo_doc, debug.
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	value := pathValue(r, "valor")
	log := h.logger.With(zap.String("request_id", middleware.GetReqID(ctx)), zap.String("valor", value))

	req, opts, err := parseLookup(value, r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	outcome, err := h.searcher.Search(ctx, req, opts)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			log.Warn("invalid lookup", zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		log.Error("lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error interno del servidor: %v", err))
		return
	}

	if reason, failed := outcome.NoData(); failed {
		log.Warn("lookup returned a failure", zap.String("reason", reason), zap.Stringer("kind", outcome.Kind))
		writeError(w, failureStatus(reason), reason)
		return
	}

	writeJSON(w, http.StatusOK, lookupResponse{Value: value, Results: outcome.Entries})
}

// handleBatch looks up every query of the configured sheet column
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.batch.Source == nil {
		writeError(w, http.StatusServiceUnavailable, "la consulta masiva requiere una hoja de cálculo configurada")
		return
	}

	opts, err := parseBatch(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	queries, err := h.batch.Source.ReadColumn(h.batch.InputRange, h.batch.InputColumn)
	if err != nil {
		h.logger.Error("failed to read batch input", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error interno del servidor: %v", err))
		return
	}
	h.logger.Info("Starting batch", zap.Int("queries", len(queries)))

	summary := scheduler.RunBatch(ctx, h.searcher, queries, opts, h.logger)
	h.export(ctx, &summary)

	writeJSON(w, http.StatusOK, summary)
}

// export writes the batch to a new tab. A failed export keeps the summary.
func (h *Handler) export(ctx context.Context, summary *scheduler.BatchSummary) {
	if h.batch.Exporter == nil || ctx.Err() != nil {
		return
	}
	name := fmt.Sprintf("Lote_%s", h.now().Format("20060102_150405"))
	_, sheetID, err := h.batch.Exporter.CreateSheetAndWriteResults(name, summary.Results, summary.Errors)
	if err != nil {
		h.logger.Warn("Warning: failed to export batch results", zap.Error(err))
		return
	}
	summary.SheetURL = sheets.SheetURL(h.batch.SpreadsheetID, sheetID)
}

// pathValue decodes a URL param. chi matches on RawPath when the request carries one.
func pathValue(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(value); err == nil {
			return unescaped
		}
	}
	return value
}

func parseLookup(value string, r *http.Request) (models.SearchRequest, scraper.SearchOptions, error) {
	q := r.URL.Query()

	mode, err := models.ParseSearchMode(q.Get("tipo"))
	if err != nil {
		return models.SearchRequest{}, scraper.SearchOptions{}, err
	}
	req := models.SearchRequest{Value: value, Mode: mode}

	if raw := q.Get("tipo_doc"); raw != "" && mode == models.ModeByPersonalDocument {
		docType, err := models.ParseDocumentType(raw)
		if err != nil {
			return models.SearchRequest{}, scraper.SearchOptions{}, err
		}
		req.DocumentType = docType
	}

	debug, err := parseDebug(q.Get("debug"))
	if err != nil {
		return models.SearchRequest{}, scraper.SearchOptions{}, err
	}
	return req, scraper.SearchOptions{Debug: debug}, nil
}

func parseBatch(r *http.Request) (scheduler.BatchOptions, error) {
	q := r.URL.Query()

	mode, err := models.ParseSearchMode(q.Get("tipo"))
	if err != nil {
		return scheduler.BatchOptions{}, err
	}
	opts := scheduler.BatchOptions{Mode: mode}

	if raw := q.Get("tipo_doc"); raw != "" && mode == models.ModeByPersonalDocument {
		if opts.DocumentType, err = models.ParseDocumentType(raw); err != nil {
			return scheduler.BatchOptions{}, err
		}
	}

	debug, err := parseDebug(q.Get("debug"))
	if err != nil {
		return scheduler.BatchOptions{}, err
	}
	opts.Search.Debug = debug
	return opts, nil
}

func parseDebug(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	debug, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &models.ValidationError{Field: "debug", Reason: fmt.Sprintf("valor booleano no válido: %q", raw)}
	}
	return debug, nil
}

// failureStatus maps connectivity failures to 503 and everything else to 400
func failureStatus(reason string) int {
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "conexión") || strings.Contains(lower, "connection") {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
