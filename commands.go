package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/api"
	"github.com/debugsito/scrap-sunat/bot"
	"github.com/debugsito/scrap-sunat/db"
	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/scheduler"
	"github.com/debugsito/scrap-sunat/scraper"
	"github.com/debugsito/scrap-sunat/sheets"
)

var (
	searchMode string
	docType    string
	debugMode  bool
	inputPath  string
	exportRun  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [valor]",
	Short: "Run one lookup and print the results as JSON",
	Example: `  scrap-sunat search "SUPERMERCADOS PERUANOS"
  scrap-sunat search 20100070970 --tipo ruc
  scrap-sunat search 12345678 --tipo documento --tipo-doc dni`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up every query from a file or the configured Google Sheet",
	Long: `Reads one query per line from --input, or the configured column of the
Google Sheet otherwise, and looks each one up in order. A failing query never
stops the batch. With --export the results go to a new tab of the spreadsheet.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lookup API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot and the request scheduler",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, batchCmd} {
		c.Flags().StringVarP(&searchMode, "tipo", "t", "nombre", "Search mode: nombre, ruc or documento")
		c.Flags().StringVar(&docType, "tipo-doc", "", "Document type for --tipo documento: dni, ce, pasaporte, cedula")
		c.Flags().BoolVar(&debugMode, "debug", false, "Show the browser window and slow it down")
	}
	batchCmd.Flags().StringVarP(&inputPath, "input", "i", "", "File with one query per line")
	batchCmd.Flags().BoolVar(&exportRun, "export", false, "Write the results to a new tab of the spreadsheet")
}

// parseModeFlags turns --tipo and --tipo-doc into typed values
func parseModeFlags() (models.SearchMode, models.DocumentType, error) {
	mode, err := models.ParseSearchMode(searchMode)
	if err != nil {
		return "", "", err
	}
	if mode != models.ModeByPersonalDocument || docType == "" {
		return mode, "", nil
	}
	dt, err := models.ParseDocumentType(docType)
	if err != nil {
		return "", "", err
	}
	return mode, dt, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	mode, dt, err := parseModeFlags()
	if err != nil {
		return err
	}
	req := models.SearchRequest{Value: args[0], Mode: mode, DocumentType: dt}

	outcome, err := scraper.NewSearcher(cfg, logger).Search(ctx, req, scraper.SearchOptions{Debug: debugMode})
	if err != nil {
		return err
	}
	if reason, failed := outcome.NoData(); failed {
		logger.Warn("Lookup returned a failure", zap.String("reason", reason), zap.Stringer("kind", outcome.Kind))
	}

	return printJSON(cmd, struct {
		Value   string               `json:"valor"`
		Results []models.ResultEntry `json:"resultados"`
	}{args[0], outcome.Entries})
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	mode, dt, err := parseModeFlags()
	if err != nil {
		return err
	}

	queries, err := batchInput(ctx)
	if err != nil {
		return err
	}
	logger.Info("Starting batch", zap.Int("queries", len(queries)), zap.String("mode", string(mode)))

	var exporter scheduler.Exporter
	if exportRun {
		if exporter, err = newExporter(ctx); err != nil {
			return err
		}
	}

	opts := scheduler.BatchOptions{Mode: mode, DocumentType: dt, Search: scraper.SearchOptions{Debug: debugMode}}
	summary := scheduler.RunBatch(ctx, scraper.NewSearcher(cfg, logger), queries, opts, logger)

	if exporter != nil {
		name := fmt.Sprintf("Lote_%s", time.Now().Format("20060102_150405"))
		_, sheetID, err := exporter.CreateSheetAndWriteResults(name, summary.Results, summary.Errors)
		if err != nil {
			logger.Warn("Warning: failed to export batch results", zap.Error(err))
		} else {
			summary.SheetURL = sheets.SheetURL(cfg.Sheets.SpreadsheetID, sheetID)
		}
	}

	return printJSON(cmd, summary)
}

// batchInput reads --input or, without it, the configured sheet column
func batchInput(ctx context.Context) ([]string, error) {
	if inputPath != "" {
		return readLines(inputPath)
	}

	if cfg.Sheets.SpreadsheetID == "" {
		return nil, errors.New("either --input or a spreadsheet (SPREADSHEET_ID) is required")
	}
	creds, err := sheetCredentials()
	if err != nil {
		return nil, err
	}
	reader, err := sheets.NewReader(ctx, cfg.Sheets.SpreadsheetID, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets reader: %w", err)
	}
	return reader.ReadColumn(cfg.Sheets.InputRange, cfg.Sheets.InputColumn)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return lines, nil
}

// newExporter builds a sheet writer. The returned interface is nil on error.
func newExporter(ctx context.Context) (scheduler.Exporter, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, errors.New("exporting results requires a spreadsheet (SPREADSHEET_ID)")
	}
	creds, err := sheetCredentials()
	if err != nil {
		return nil, err
	}
	writer, err := sheets.NewWriter(ctx, cfg.Sheets.SpreadsheetID, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets writer: %w", err)
	}
	logger.Info("Google Sheets writer initialized", zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID))
	return writer, nil
}

// batchConfig wires the sheet reader and writer for the HTTP bulk endpoint when a spreadsheet is set
func batchConfig(ctx context.Context) api.BatchConfig {
	bc := api.BatchConfig{
		InputRange:    cfg.Sheets.InputRange,
		InputColumn:   cfg.Sheets.InputColumn,
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
	}
	if cfg.Sheets.SpreadsheetID == "" {
		logger.Warn("Warning: no spreadsheet configured, bulk lookups are disabled")
		return bc
	}
	creds, err := sheetCredentials()
	if err != nil {
		logger.Warn("Warning: bulk lookups are disabled", zap.Error(err))
		return bc
	}

	reader, err := sheets.NewReader(ctx, cfg.Sheets.SpreadsheetID, creds, logger)
	if err != nil {
		logger.Warn("Warning: failed to initialize Google Sheets reader, bulk lookups are disabled", zap.Error(err))
		return bc
	}
	bc.Source = reader

	if exporter, err := newExporter(ctx); err != nil {
		logger.Warn("Warning: bulk results will not be exported", zap.Error(err))
	} else {
		bc.Exporter = exporter
	}
	return bc
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handler := api.New(scraper.NewSearcher(cfg, logger), batchConfig(ctx), logger)
	r := chi.NewRouter()
	handler.Register(r)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	return server.Shutdown(shutdownCtx)
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Telegram.Token == "" {
		return errors.New("SUNAT_KEY_TG environment variable is not set")
	}

	client, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	logger.Info("Authorized on account", zap.String("username", client.Self.UserName))

	database, err := db.NewDB(cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	var exporter scheduler.Exporter
	if cfg.Sheets.SpreadsheetID != "" {
		if exporter, err = newExporter(ctx); err != nil {
			logger.Warn("Warning: results will not be exported to Google Sheets", zap.Error(err))
		}
	}

	sched := scheduler.NewScheduler(database, scraper.NewSearcher(cfg, logger), exporter,
		scheduler.NewTelegramNotifier(client), cfg.Sheets.SpreadsheetID, cfg.Telegram.PollInterval, logger)
	sched.Start()
	logger.Info("Scheduler started (browser will be created on-demand for each request)")
	defer sched.Stop()

	b := bot.New(client, database, cfg.Telegram.AllowedUsers, logger)
	b.NotifyStartup(cfg.Telegram.AdminChatID)

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
