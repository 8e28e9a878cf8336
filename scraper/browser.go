package scraper

import (
	"context"
	"time"

	"github.com/debugsito/scrap-sunat/models"
)

// Launcher opens one isolated browser session per orchestrator attempt
type Launcher interface {
	Launch(ctx context.Context, opts SessionOptions) (Session, error)
}

// SessionOptions configures a single session
type SessionOptions struct {
	Debug bool
}

// Session owns a browser process and its page. Close releases everything.
type Session interface {
	Page() Page
	Close() error
}

// Page is the subset of page operations the navigation flow needs.
// Elements returned by a Page must not be used after a navigation.
type Page interface {
	// Navigate loads url and waits for network quiescence
	Navigate(url string, timeout time.Duration) error
	// Element waits up to timeout for the first match of selector
	Element(selector string, timeout time.Duration) (Element, error)
	// Elements returns the current matches of selector without waiting
	Elements(selector string) ([]Element, error)
	HTML() (string, error)
	NavigateBack() error
}

// Element is one DOM node
type Element interface {
	// WithContext binds subsequent calls to ctx
	WithContext(ctx context.Context) Element
	Click() error
	ScrollIntoView() error
	Clear() error
	// Input inserts text at the caret
	Input(text string) error
	// Type focuses the node and sends key events for each character of text
	Type(text string) error
	// SetValue assigns value from script and dispatches input and change events
	SetValue(value string) error
	Value() (string, error)
	// Select picks the option whose value attribute equals value
	Select(value string) error
}

// Extractor converts a rendered result page into an entry
type Extractor interface {
	Extract(html string) (models.ResultEntry, error)
}
