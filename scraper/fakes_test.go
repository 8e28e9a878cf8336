package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/debugsito/scrap-sunat/models"
)

var errNotFound = errors.New("context deadline exceeded")

// fakeLauncher hands out sessions over one shared fakePage
type fakeLauncher struct {
	page      *fakePage
	launchErr error
	launches  int
	closes    int
}

func (l *fakeLauncher) Launch(_ context.Context, _ SessionOptions) (Session, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return &fakeSession{l: l}, nil
}

type fakeSession struct {
	l *fakeLauncher
}

func (s *fakeSession) Page() Page { return s.l.page }

func (s *fakeSession) Close() error {
	s.l.closes++
	return nil
}

// fakePage simulates the portal: form -> list -> detail, or form -> direct result
type fakePage struct {
	view        string // "blank", "form", "list", "detail", "direct", "empty"
	mode        models.SearchMode
	anchors     int
	shrinkTo    int // when >0, the list re-renders with this many anchors after the first back
	detailIndex int
	backs       int
	missing     map[string]bool
	navErr      error
	backFailAt  map[int]bool // detail index whose back navigation fails
	directHTML  string
	silent      bool // submit renders neither a list, a notice nor a panel
	values      map[string]string
	selected    string
	calls       []string
}

func newFakePage() *fakePage {
	return &fakePage{view: "blank", missing: map[string]bool{}, backFailAt: map[int]bool{}, values: map[string]string{}}
}

func (p *fakePage) record(call string) { p.calls = append(p.calls, call) }

func (p *fakePage) Navigate(url string, _ time.Duration) error {
	p.record("navigate")
	if p.navErr != nil {
		return p.navErr
	}
	p.view = "form"
	return nil
}

func (p *fakePage) present(selector string) bool {
	if p.missing[selector] {
		return false
	}
	switch selector {
	case selectorByNameToggle, selectorByDocumentToggle, selectorRegistryField, selectorSubmit:
		return p.view == "form"
	case selectorNameField:
		return p.view == "form" && p.mode == models.ModeByName
	case selectorDocumentType, selectorDocumentField:
		return p.view == "form" && p.mode == models.ModeByPersonalDocument
	case selectorResultPanel:
		return p.view == "detail" || p.view == "direct"
	case selectorResultAnchor:
		return p.view == "list" && p.currentAnchors() > 0
	}
	return false
}

func (p *fakePage) currentAnchors() int {
	if p.shrinkTo > 0 && p.backs > 0 {
		return p.shrinkTo
	}
	return p.anchors
}

func (p *fakePage) Element(selector string, _ time.Duration) (Element, error) {
	if !p.present(selector) {
		return nil, fmt.Errorf("element %s: %w", selector, errNotFound)
	}
	return &fakeElement{page: p, id: selector, index: -1}, nil
}

func (p *fakePage) Elements(selector string) ([]Element, error) {
	if selector != selectorResultAnchor || !p.present(selector) {
		return nil, nil
	}
	out := make([]Element, p.currentAnchors())
	for i := range out {
		out[i] = &fakeElement{page: p, id: selector, index: i}
	}
	return out, nil
}

func (p *fakePage) HTML() (string, error) {
	switch p.view {
	case "detail":
		return fmt.Sprintf(`<div class="panel panel-primary">detail-%d</div>`, p.detailIndex), nil
	case "direct":
		return p.directHTML, nil
	case "empty":
		return `<div class="alert">No se encontraron resultados</div>`, nil
	}
	return "<html></html>", nil
}

func (p *fakePage) NavigateBack() error {
	p.record("back")
	if p.view == "detail" && p.backFailAt[p.detailIndex] {
		return errors.New("navigation failed")
	}
	p.backs++
	switch p.view {
	case "detail":
		p.view = "list"
	case "list", "empty", "direct":
		p.view = "form"
	}
	return nil
}

func (p *fakePage) submit() {
	switch {
	case p.mode == models.ModeByRegistryNumber && p.directHTML != "":
		p.view = "direct"
	case p.mode == models.ModeByRegistryNumber:
		p.view = "empty"
	case p.anchors > 0:
		p.view = "list"
	case p.directHTML != "":
		p.view = "direct"
	case p.silent:
		p.view = "blank"
	default:
		p.view = "empty"
	}
}

type fakeElement struct {
	page     *fakePage
	id       string
	index    int
	clickErr error
}

func (e *fakeElement) WithContext(context.Context) Element { return e }

func (e *fakeElement) Click() error {
	p := e.page
	switch e.id {
	case selectorByNameToggle:
		p.mode = models.ModeByName
	case selectorByDocumentToggle:
		p.mode = models.ModeByPersonalDocument
	case selectorSubmit:
		p.record("submit")
		p.submit()
	case selectorResultAnchor:
		p.record("click-" + strconv.Itoa(e.index))
		p.detailIndex = e.index
		p.view = "detail"
	}
	return e.clickErr
}

func (e *fakeElement) ScrollIntoView() error { return nil }

func (e *fakeElement) Clear() error {
	e.page.values[e.id] = ""
	return nil
}

func (e *fakeElement) Input(text string) error {
	e.page.values[e.id] += text
	return nil
}

func (e *fakeElement) Type(text string) error {
	e.page.values[e.id] += text
	return nil
}

func (e *fakeElement) SetValue(value string) error {
	e.page.values[e.id] = value
	return nil
}

func (e *fakeElement) Value() (string, error) { return e.page.values[e.id], nil }

func (e *fakeElement) Select(value string) error {
	e.page.selected = value
	return nil
}

// indexExtractor reads "detail-N" from the fake markup. It errors at failAt and
// reports an empty panel for the indexes in emptyAt.
type indexExtractor struct {
	failAt  int
	emptyAt map[int]bool
}

func (x indexExtractor) Extract(html string) (models.ResultEntry, error) {
	start := strings.Index(html, "detail-")
	if start < 0 {
		return models.FailureEntry("No se encontró información"), nil
	}
	rest := html[start+len("detail-"):]
	end := strings.IndexByte(rest, '<')
	i, err := strconv.Atoi(rest[:end])
	if err != nil {
		return models.ResultEntry{}, err
	}
	if i == x.failAt {
		return models.ResultEntry{}, errors.New("panel ilegible")
	}
	if x.emptyAt[i] {
		return models.FailureEntry("No se encontró información"), nil
	}
	return models.RecordEntry(models.NewRecord([]models.Field{{Key: "indice", Value: models.Str(strconv.Itoa(i))}})), nil
}

// scriptedRunner returns queued outcomes, one per Run
type scriptedRunner struct {
	outcomes []models.Outcome
	runs     int
}

func (r *scriptedRunner) Run(context.Context, models.SearchRequest, SearchOptions) models.Outcome {
	out := r.outcomes[r.runs]
	r.runs++
	return out
}

// scriptedElement is a bare field for fill chain tests
type scriptedElement struct {
	value      string
	inputErr   error
	clickErr   error
	setErr     error
	typeErr    error
	dropsInput bool // direct Input of a whole value is ignored
	inputs     []string
	typed      []string
}

func (e *scriptedElement) WithContext(context.Context) Element { return e }
func (e *scriptedElement) Click() error                        { return e.clickErr }
func (e *scriptedElement) ScrollIntoView() error               { return nil }
func (e *scriptedElement) Clear() error                        { e.value = ""; return nil }
func (e *scriptedElement) Value() (string, error)              { return e.value, nil }
func (e *scriptedElement) Select(string) error                 { return nil }

func (e *scriptedElement) Input(text string) error {
	e.inputs = append(e.inputs, text)
	if e.inputErr != nil {
		return e.inputErr
	}
	if e.dropsInput && len([]rune(text)) > 1 {
		return nil
	}
	e.value += text
	return nil
}

func (e *scriptedElement) Type(text string) error {
	e.typed = append(e.typed, text)
	if e.typeErr != nil {
		return e.typeErr
	}
	e.value += text
	return nil
}

func (e *scriptedElement) SetValue(value string) error {
	if e.setErr != nil {
		return e.setErr
	}
	e.value = value
	return nil
}
