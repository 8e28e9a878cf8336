package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/scraper"

	"go.uber.org/zap"
)

// maxErrorSample is how many error lines a batch summary carries
const maxErrorSample = 5

// BatchSummary reports the outcome of a bulk run
type BatchSummary struct {
	Message      string               `json:"mensaje"`
	TotalQueries int                  `json:"total_empresas"`
	Processed    int                  `json:"empresas_procesadas"`
	TotalErrors  int                  `json:"total_errores"`
	Overview     BatchOverview        `json:"resumen"`
	ErrorSample  []string             `json:"errores_muestra,omitempty"`
	SheetURL     string               `json:"hoja,omitempty"`
	Results      []models.QueryResult `json:"-"`
	Errors       []string             `json:"-"`
}

// BatchOverview counts the queries that produced data
type BatchOverview struct {
	QueriesWithData int `json:"empresas_con_datos"`
	TotalResults    int `json:"total_resultados"`
}

// BatchOptions configures RunBatch
type BatchOptions struct {
	Mode         models.SearchMode
	DocumentType models.DocumentType
	Search       scraper.SearchOptions
}

// RunBatch looks up every query in order. A failing query never stops the batch.
func RunBatch(ctx context.Context, searcher scraper.Searcher, queries []string, opts BatchOptions, logger *zap.Logger) BatchSummary {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeByName
	}

	summary := BatchSummary{TotalQueries: len(queries)}

	for i, raw := range queries {
		if ctx.Err() != nil {
			logger.Warn("Warning: batch cancelled, skipping remaining queries",
				zap.Int("remaining", len(queries)-i), zap.Error(ctx.Err()))
			break
		}

		query := strings.TrimSpace(raw)
		logger.Info("Processing query", zap.Int("index", i+1), zap.Int("total", len(queries)), zap.String("query", query))

		entries, errMsg := runQuery(ctx, searcher, query, opts)
		if errMsg != "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", query, errMsg))
			logger.Warn("Warning: query failed", zap.String("query", query), zap.String("reason", errMsg))
		} else {
			logger.Info("Query returned data", zap.String("query", query), zap.Int("results", len(entries)))
		}

		result := models.QueryResult{Query: query, Entries: entries}
		summary.Results = append(summary.Results, result)
		summary.Processed++

		if result.HasData() {
			summary.Overview.QueriesWithData++
			summary.Overview.TotalResults += result.RecordCount()
		}

		if summary.Processed%5 == 0 {
			logger.Info("Batch progress", zap.Int("processed", summary.Processed), zap.Int("total", len(queries)))
		}
	}

	summary.TotalErrors = len(summary.Errors)
	summary.ErrorSample = errorSample(summary.Errors)
	summary.Message = "✅ Consulta completada exitosamente"

	return summary
}

// runQuery returns the entries for one query and, when none of them is a record, the failure reason
func runQuery(ctx context.Context, searcher scraper.Searcher, query string, opts BatchOptions) ([]models.ResultEntry, string) {
	req := models.SearchRequest{Value: query, Mode: opts.Mode, DocumentType: opts.DocumentType}

	outcome, err := searcher.Search(ctx, req, opts.Search)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return []models.ResultEntry{models.FailureEntry(verr.Error())}, verr.Error()
		}
		reason := fmt.Sprintf("Error procesando %s: %v", query, err)
		return []models.ResultEntry{models.FailureEntry(reason)}, reason
	}

	if reason, failed := outcome.NoData(); failed {
		return outcome.Entries, reason
	}
	return outcome.Entries, ""
}

func errorSample(errs []string) []string {
	if len(errs) == 0 {
		return nil
	}
	n := min(len(errs), maxErrorSample)
	sample := append([]string(nil), errs[:n]...)
	if len(errs) > maxErrorSample {
		sample = append(sample, fmt.Sprintf("... y %d errores más", len(errs)-maxErrorSample))
	}
	return sample
}
