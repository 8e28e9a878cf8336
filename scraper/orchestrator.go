package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/config"
	"github.com/debugsito/scrap-sunat/models"
	"github.com/debugsito/scrap-sunat/parser"
)

// Portal selectors
const (
	selectorByNameToggle     = "#btnPorRazonSocial"
	selectorNameField        = "#txtNombreRazonSocial"
	selectorByDocumentToggle = "#btnPorDocumento"
	selectorDocumentType     = "#cmbTipoDoc"
	selectorDocumentField    = "#txtNumeroDocumento"
	selectorRegistryField    = "#txtRuc"
	selectorSubmit           = "#btnAceptar"
	selectorResultPanel      = ".panel.panel-primary"
	selectorResultAnchor     = "a.aRucs"
)

// Reasons attached to Failure entries
const (
	ReasonNoRegistryData = "No se encontraron datos para el RUC especificado"
	ReasonNoResults      = "No se encontraron resultados para la búsqueda"
)

type state int

const (
	stateLaunching state = iota
	stateFormLoaded
	stateModeSelected
	stateFieldFilled
	stateSubmitted
	stateDirectResult
	stateResultList
	stateNoResults
	stateIteratingResults
	stateDone
)

func (s state) String() string {
	switch s {
	case stateLaunching:
		return "Launching"
	case stateFormLoaded:
		return "FormLoaded"
	case stateModeSelected:
		return "ModeSelected"
	case stateFieldFilled:
		return "FieldFilled"
	case stateSubmitted:
		return "Submitted"
	case stateDirectResult:
		return "DirectResult"
	case stateResultList:
		return "ResultList"
	case stateNoResults:
		return "NoResults"
	case stateIteratingResults:
		return "IteratingResults"
	case stateDone:
		return "Done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var errListShrunk = errors.New("la lista de resultados cambió")

// Orchestrator drives one end-to-end query through the portal's search flow
type Orchestrator struct {
	launcher  Launcher
	extractor Extractor
	cfg       config.ScraperConfig
	fill      FillChain
	logger    *zap.Logger

	sleep  func(time.Duration)
	jitter func(lo, hi time.Duration) time.Duration
}

// NewOrchestrator creates an orchestrator. A nil extractor uses parser.ResultParser.
func NewOrchestrator(launcher Launcher, extractor Extractor, cfg config.ScraperConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = parser.NewResultParser()
	}
	o := &Orchestrator{
		launcher:  launcher,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		sleep:     time.Sleep,
		jitter:    randomBetween,
	}
	o.fill = DefaultFillChain(cfg, func(d time.Duration) { o.sleep(d) })
	return o
}

// Run executes one attempt. The session opened here is closed before returning.
func (o *Orchestrator) Run(ctx context.Context, req models.SearchRequest, opts SearchOptions) models.Outcome {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return models.FatalFailure(err.Error())
	}

	r := &run{o: o, req: req, opts: opts, logger: o.logger.With(zap.Stringer("request", req))}
	defer r.close()

	current := stateLaunching
	for current != stateDone {
		next, err := r.step(ctx, current)
		if err != nil {
			outcome := classify(err)
			r.logger.Warn("search aborted",
				zap.Stringer("state", current),
				zap.Stringer("outcome", outcome.Kind),
				zap.Error(err))
			return outcome
		}
		r.logger.Debug("state transition", zap.Stringer("from", current), zap.Stringer("to", next))
		current = next
	}

	return models.Success(r.entries)
}

// run is the mutable state of a single attempt
type run struct {
	o      *Orchestrator
	req    models.SearchRequest
	opts   SearchOptions
	logger *zap.Logger

	session     Session
	page        Page
	html        string
	anchorCount int
	noResults   string
	entries     []models.ResultEntry
}

func (r *run) step(ctx context.Context, s state) (state, error) {
	switch s {
	case stateLaunching:
		return r.launch(ctx)
	case stateFormLoaded:
		return r.selectMode()
	case stateModeSelected:
		return r.fillField(ctx)
	case stateFieldFilled:
		return r.submit()
	case stateSubmitted:
		return r.awaitResults()
	case stateDirectResult:
		return r.extractDirect()
	case stateResultList:
		return r.countResults()
	case stateIteratingResults:
		return r.iterateResults(ctx)
	case stateNoResults:
		r.entries = []models.ResultEntry{models.FailureEntry(r.noResults)}
		return stateDone, nil
	}
	return stateDone, fmt.Errorf("unexpected state %s", s)
}

func (r *run) close() {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		r.logger.Warn("Warning: failed to close browser session", zap.Error(err))
	}
	r.session = nil
}

func (r *run) launch(ctx context.Context) (state, error) {
	session, err := r.o.launcher.Launch(ctx, SessionOptions{Debug: r.opts.Debug})
	if err != nil {
		return stateLaunching, fmt.Errorf("failed to launch browser: %w", err)
	}
	r.session = session
	r.page = session.Page()

	if err := r.page.Navigate(r.o.cfg.EntryURL, r.o.cfg.FormTimeout); err != nil {
		return stateLaunching, fmt.Errorf("failed to navigate: %w", err)
	}
	// rendering finishes after the network goes idle
	r.o.sleep(r.o.cfg.SettleDelay)
	return stateFormLoaded, nil
}

func (r *run) selectMode() (state, error) {
	switch r.req.Mode {
	case models.ModeByName:
		if err := r.click(selectorByNameToggle, r.o.cfg.FormTimeout); err != nil {
			return stateFormLoaded, err
		}
		r.o.sleep(r.o.cfg.ToggleDelay)

	case models.ModeByPersonalDocument:
		if err := r.click(selectorByDocumentToggle, r.o.cfg.FormTimeout); err != nil {
			return stateFormLoaded, err
		}
		r.o.sleep(r.o.cfg.ToggleDelay)

		sel, err := r.page.Element(selectorDocumentType, r.o.cfg.FormTimeout)
		if err != nil {
			return stateFormLoaded, missingControl(selectorDocumentType, err)
		}
		if err := sel.Select(string(r.req.DocumentType)); err != nil {
			return stateFormLoaded, fmt.Errorf("failed to select document type %s: %w", r.req.DocumentType, err)
		}
		r.o.sleep(r.o.cfg.ToggleDelay)
	}
	return stateModeSelected, nil
}

func (r *run) fillField(ctx context.Context) (state, error) {
	selector := fieldSelector(r.req.Mode)
	field, err := r.page.Element(selector, r.o.cfg.FormTimeout)
	if err != nil {
		return stateModeSelected, missingControl(selector, err)
	}
	if err := r.o.fill.Fill(ctx, field, r.req.Value, r.logger); err != nil {
		return stateModeSelected, err
	}
	return stateFieldFilled, nil
}

func (r *run) submit() (state, error) {
	if err := r.click(selectorSubmit, r.o.cfg.FormTimeout); err != nil {
		return stateFieldFilled, err
	}
	return stateSubmitted, nil
}

func (r *run) awaitResults() (state, error) {
	if r.req.Mode == models.ModeByRegistryNumber {
		if _, err := r.page.Element(selectorResultPanel, r.o.cfg.ResultsTimeout); err != nil {
			if IsConnectionError(err) {
				return stateSubmitted, err
			}
			r.logger.Info("no result panel for registry number", zap.Error(err))
			r.noResults = ReasonNoRegistryData
			return stateNoResults, nil
		}
		return stateDirectResult, nil
	}

	if _, err := r.page.Element(selectorResultAnchor, r.o.cfg.ResultsTimeout); err != nil {
		if IsConnectionError(err) {
			return stateSubmitted, err
		}
		html, herr := r.page.HTML()
		if herr != nil {
			return stateSubmitted, fmt.Errorf("failed to get HTML: %w", herr)
		}
		if parser.HasNoResultsMessage(html) {
			r.noResults = ReasonNoResults
			return stateNoResults, nil
		}
		// single matches sometimes skip the list
		if parser.IsDirectShape(html) {
			r.html = html
			return stateDirectResult, nil
		}
		return stateSubmitted, &FatalError{Reason: "no apareció la lista de resultados", Err: err}
	}
	return stateResultList, nil
}

func (r *run) extractDirect() (state, error) {
	html := r.html
	if html == "" {
		var err error
		if html, err = r.page.HTML(); err != nil {
			return stateDirectResult, fmt.Errorf("failed to get HTML: %w", err)
		}
	}

	entry, err := r.o.extractor.Extract(html)
	if err != nil {
		return stateDirectResult, &FatalError{Reason: "no se pudo leer el resultado", Err: err}
	}
	if entry.IsFailure() {
		r.noResults = ReasonNoRegistryData
		if r.req.Mode != models.ModeByRegistryNumber {
			r.noResults = ReasonNoResults
		}
		return stateNoResults, nil
	}

	r.entries = []models.ResultEntry{entry}
	return stateDone, nil
}

func (r *run) countResults() (state, error) {
	anchors, err := r.page.Elements(selectorResultAnchor)
	if err != nil {
		return stateResultList, fmt.Errorf("failed to list results: %w", err)
	}
	r.anchorCount = len(anchors)
	r.logger.Info("results found", zap.Int("count", r.anchorCount))
	if r.anchorCount == 0 {
		r.noResults = ReasonNoResults
		return stateNoResults, nil
	}
	return stateIteratingResults, nil
}

// iterateResults visits every anchor of the originally observed list by index.
// Anchors are re-queried on each iteration since going back re-renders the list.
func (r *run) iterateResults(ctx context.Context) (state, error) {
	r.entries = make([]models.ResultEntry, 0, r.anchorCount)

	for i := 0; i < r.anchorCount; i++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("Warning: search cancelled, returning partial results", zap.Int("processed", i))
			break
		}

		entry, err := r.visit(i)
		if errors.Is(err, errListShrunk) {
			r.logger.Warn("Warning: result list shrank", zap.Int("index", i))
			r.entries = append(r.entries, models.FailureEntry(itemFailure(i, err)))
			continue
		}
		if err != nil {
			r.logger.Warn("Warning: failed to process result, continuing", zap.Int("index", i), zap.Error(err))
			r.entries = append(r.entries, models.FailureEntry(itemFailure(i, err)))
			if rerr := r.recoverList(); rerr != nil {
				r.logger.Warn("Warning: could not return to result list, stopping", zap.Int("index", i), zap.Error(rerr))
				break
			}
			continue
		}

		r.entries = append(r.entries, entry)
		if err := r.returnToList(); err != nil {
			r.logger.Warn("Warning: could not return to result list, stopping", zap.Int("index", i), zap.Error(err))
			break
		}
	}

	return stateDone, nil
}

func (r *run) visit(i int) (models.ResultEntry, error) {
	anchors, err := r.page.Elements(selectorResultAnchor)
	if err != nil {
		return models.ResultEntry{}, fmt.Errorf("failed to list results: %w", err)
	}
	if i >= len(anchors) {
		return models.ResultEntry{}, errListShrunk
	}
	anchor := anchors[i]

	if err := anchor.ScrollIntoView(); err != nil {
		return models.ResultEntry{}, fmt.Errorf("scroll: %w", err)
	}
	r.o.sleep(r.o.cfg.ScrollDelay)
	r.o.sleep(r.o.jitter(r.o.cfg.JitterMin, r.o.cfg.JitterMax))

	if err := anchor.Click(); err != nil {
		return models.ResultEntry{}, fmt.Errorf("click: %w", err)
	}
	if _, err := r.page.Element(selectorResultPanel, r.o.cfg.DetailTimeout); err != nil {
		return models.ResultEntry{}, fmt.Errorf("detail panel: %w", err)
	}
	r.o.sleep(r.o.cfg.DetailDelay)

	html, err := r.page.HTML()
	if err != nil {
		return models.ResultEntry{}, fmt.Errorf("failed to get HTML: %w", err)
	}
	return r.o.extractor.Extract(html)
}

func (r *run) returnToList() error {
	if err := r.page.NavigateBack(); err != nil {
		return fmt.Errorf("back: %w", err)
	}
	r.o.sleep(r.o.cfg.BackDelay)
	if _, err := r.page.Element(selectorResultAnchor, r.o.cfg.DetailTimeout); err != nil {
		return fmt.Errorf("result list: %w", err)
	}
	return nil
}

// recoverList brings the page back to the result list after a failed visit
func (r *run) recoverList() error {
	if anchors, err := r.page.Elements(selectorResultAnchor); err == nil && len(anchors) > 0 {
		return nil
	}
	if err := r.page.NavigateBack(); err != nil {
		return fmt.Errorf("back: %w", err)
	}
	if _, err := r.page.Element(selectorResultAnchor, r.o.cfg.RecoveryTimeout); err != nil {
		return fmt.Errorf("result list: %w", err)
	}
	return nil
}

func (r *run) click(selector string, timeout time.Duration) error {
	el, err := r.page.Element(selector, timeout)
	if err != nil {
		return missingControl(selector, err)
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func missingControl(selector string, err error) error {
	if IsConnectionError(err) {
		return err
	}
	return &FatalError{Reason: fmt.Sprintf("control %s no encontrado", selector), Err: err}
}

func fieldSelector(mode models.SearchMode) string {
	switch mode {
	case models.ModeByName:
		return selectorNameField
	case models.ModeByPersonalDocument:
		return selectorDocumentField
	}
	return selectorRegistryField
}

func itemFailure(i int, err error) string {
	return fmt.Sprintf("Error al procesar resultado %d: %v", i+1, err)
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
