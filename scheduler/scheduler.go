package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debugsito/scrap-sunat/db"
	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/scraper"
	"github.com/debugsito/scrap-sunat/sheets"

	"go.uber.org/zap"
)

// Queue is the part of the request store the scheduler drives
type Queue interface {
	ClaimNextRequest() (*db.Request, error)
	UpdateRequestStatus(requestID int, status string) error
	UpdateRequestCounts(requestID int, resultsCount, errorsCount int) error
	UpdateRequestSheetName(requestID int, sheetName string) error
	SaveResults(requestID int, entries []models.ResultEntry) error
}

// Exporter writes a request's results to a new spreadsheet tab
type Exporter interface {
	CreateSheetAndWriteResults(sheetName string, results []models.QueryResult, errs []string) (string, int64, error)
}

// Notifier delivers status messages to the chat a request came from
type Notifier interface {
	Notify(chatID int64, replyTo int, text string) error
}

// Scheduler processes queued lookups from the database
type Scheduler struct {
	queue         Queue
	searcher      scraper.Searcher
	exporter      Exporter // optional
	notifier      Notifier
	spreadsheetID string
	interval      time.Duration
	logger        *zap.Logger
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler. The browser is launched per request by the searcher.
func NewScheduler(queue Queue, searcher scraper.Searcher, exporter Exporter, notifier Notifier, spreadsheetID string, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		queue:         queue,
		searcher:      searcher,
		exporter:      exporter,
		notifier:      notifier,
		spreadsheetID: spreadsheetID,
		interval:      interval,
		logger:        logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the scheduler in a goroutine
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler and waits for the request in flight
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.processNextRequest(s.ctx)
		}
	}
}

// processNextRequest claims and runs one queued request
func (s *Scheduler) processNextRequest(ctx context.Context) {
	req, err := s.queue.ClaimNextRequest()
	if err != nil {
		s.logger.Error("Error getting next request", zap.Error(err))
		return
	}
	if req == nil {
		return
	}

	search := req.SearchRequest()
	log := s.logger.With(zap.Int("request_id", req.ID), zap.Int64("user_id", req.UserID), zap.Stringer("search", search))
	log.Info("Processing request")

	s.sendStatusUpdate(req, "🔄 Procesando consulta... Iniciando navegador...")

	outcome, err := s.searcher.Search(ctx, search, scraper.SearchOptions{})
	if err != nil {
		log.Warn("Warning: search rejected", zap.Error(err))
		s.handleRequestError(req, err)
		return
	}
	if outcome.Kind != models.OutcomeSuccess {
		log.Warn("Warning: search failed", zap.Stringer("kind", outcome.Kind), zap.String("message", outcome.Message))
		s.handleRequestError(req, errors.New(outcome.Message))
		return
	}

	if err := s.queue.SaveResults(req.ID, outcome.Entries); err != nil {
		log.Error("Error saving results", zap.Error(err))
		s.handleRequestError(req, err)
		return
	}

	records, failures := countEntries(outcome.Entries)
	if err := s.queue.UpdateRequestCounts(req.ID, records, len(failures)); err != nil {
		log.Warn("Warning: failed to update request counts", zap.Error(err))
	}

	sheetURL := ""
	if s.exporter != nil {
		sheetName := fmt.Sprintf("Consulta_%d_%s", req.ID, s.now().Format("20060102_150405"))
		results := []models.QueryResult{{Query: req.Value, Entries: outcome.Entries}}

		createdSheetName, sheetID, err := s.exporter.CreateSheetAndWriteResults(sheetName, results, failures)
		if err != nil {
			log.Error("Error writing to Google Sheets", zap.Error(err))
			s.handleRequestError(req, err)
			return
		}
		if err := s.queue.UpdateRequestSheetName(req.ID, createdSheetName); err != nil {
			log.Warn("Warning: failed to update sheet name", zap.Error(err))
		}
		sheetURL = sheets.SheetURL(s.spreadsheetID, sheetID)
	}

	if err := s.queue.UpdateRequestStatus(req.ID, db.StatusDone); err != nil {
		log.Error("Error updating request status to done", zap.Error(err))
		return
	}

	log.Info("Request completed", zap.Int("records", records), zap.Int("errors", len(failures)))
	s.sendStatusUpdate(req, successMessage(search, outcome, records, len(failures), sheetURL))
}

// handleRequestError marks the request failed and tells the user why
func (s *Scheduler) handleRequestError(req *db.Request, err error) {
	if updateErr := s.queue.UpdateRequestStatus(req.ID, db.StatusFailed); updateErr != nil {
		s.logger.Error("Error updating request status to failed", zap.Int("request_id", req.ID), zap.Error(updateErr))
	}

	s.sendStatusUpdate(req, fmt.Sprintf("❌ Error procesando la consulta: %v", err))
}

// sendStatusUpdate replies to the request's original message
func (s *Scheduler) sendStatusUpdate(req *db.Request, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(req.ChatID, req.TelegramMessageID, text); err != nil {
		s.logger.Warn("Warning: failed to send status update", zap.Int("request_id", req.ID), zap.Error(err))
	}
}

// countEntries returns the number of records and the failure reasons
func countEntries(entries []models.ResultEntry) (int, []string) {
	records := 0
	var failures []string
	for _, e := range entries {
		if e.IsFailure() {
			failures = append(failures, e.Reason())
			continue
		}
		records++
	}
	return records, failures
}

func successMessage(search models.SearchRequest, outcome models.Outcome, records, failures int, sheetURL string) string {
	if reason, ok := outcome.NoData(); ok {
		return fmt.Sprintf("ℹ️ Consulta %s terminada sin datos: %s", search, reason)
	}

	msg := fmt.Sprintf("✅ Consulta %s terminada.\n\nResultados: %d\nErrores: %d", search, records, failures)

	if recs := outcome.Records(); len(recs) > 0 {
		if ruc, present, _ := recs[0].Get("ruc"); present {
			msg += fmt.Sprintf("\nPrimer resultado: %s", ruc)
		}
	}
	if sheetURL != "" {
		msg += fmt.Sprintf("\n\nVer hoja: %s", sheetURL)
	}
	return msg
}
