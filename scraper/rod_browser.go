package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/config"
)

// requestIdle is how long the network must stay quiet before a navigation counts as settled
const requestIdle = 500 * time.Millisecond

const setValueJS = `(value) => {
	this.value = value;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
}`

// RodLauncher starts a fresh Chromium per session using rod
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewRodLauncher creates a new RodLauncher instance
func NewRodLauncher(cfg config.BrowserConfig, logger *zap.Logger) *RodLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodLauncher{cfg: cfg, logger: logger}
}

// Launch implements Launcher
func (rl *RodLauncher) Launch(ctx context.Context, opts SessionOptions) (Session, error) {
	debug := opts.Debug || rl.cfg.Debug

	userDataDir := rl.sessionDataDir()

	l := launcher.New().
		Context(ctx).
		Headless(!debug).
		NoSandbox(true).
		Leakless(false). // leakless trips some antivirus tools
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-web-security").
		Set("disable-features", "VizDisplayCompositor").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-breakpad").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("window-size", fmt.Sprintf("%d,%d", rl.cfg.ViewportWidth, rl.cfg.ViewportHeight))
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	// Prefer a configured binary, then a system Chrome/Chromium, then rod's download
	if rl.cfg.Bin != "" {
		l = l.Bin(rl.cfg.Bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}

	controlURL, err := l.Launch()
	if err != nil {
		removeDataDir(userDataDir, rl.logger)
		return nil, fmt.Errorf("failed to launch browser: %w\n\nNote: On Linux, you may need to install Chromium dependencies:\n  apt-get update && apt-get install -y chromium", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if debug {
		browser = browser.SlowMotion(rl.cfg.SlowMotion).Trace(true)
	}
	if err := browser.Connect(); err != nil {
		l.Kill()
		removeDataDir(userDataDir, rl.logger)
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &rodSession{launcher: l, browser: browser, dataDir: userDataDir, logger: rl.logger}
	if err := s.openPage(rl.cfg); err != nil {
		_ = s.Close()
		return nil, err
	}

	rl.logger.Debug("browser session opened", zap.Bool("debug", debug))
	return s, nil
}

// sessionDataDir creates a private profile directory under the configured base
// (a mounted volume in containers). Chrome locks its profile, so sessions never share one.
// An empty result leaves the profile to the launcher.
func (rl *RodLauncher) sessionDataDir() string {
	base := rl.cfg.UserDataDir
	if base == "" {
		return ""
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		rl.logger.Warn("Warning: failed to create browser data directory", zap.String("dir", base), zap.Error(err))
		return ""
	}
	dir, err := os.MkdirTemp(base, "session-*")
	if err != nil {
		rl.logger.Warn("Warning: failed to create session profile directory", zap.String("dir", base), zap.Error(err))
		return ""
	}
	return dir
}

func removeDataDir(dir string, logger *zap.Logger) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("Warning: failed to remove session profile directory", zap.String("dir", dir), zap.Error(err))
	}
}

type rodSession struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	dataDir   string
	logger    *zap.Logger
}

func (s *rodSession) openPage(cfg config.BrowserConfig) error {
	incognito, err := s.browser.Incognito()
	if err != nil {
		return fmt.Errorf("failed to create incognito context: %w", err)
	}
	s.incognito = incognito

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.logger.Warn("Warning: failed to set viewport", zap.Error(err))
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
	}); err != nil {
		s.logger.Warn("Warning: failed to set user agent", zap.Error(err))
	}

	if cfg.AcceptLanguage != "" {
		if _, err := page.SetExtraHeaders([]string{"Accept-Language", cfg.AcceptLanguage}); err != nil {
			s.logger.Warn("Warning: failed to set extra headers", zap.Error(err))
		}
	}
	return nil
}

func (s *rodSession) Page() Page {
	return &rodPage{page: s.page}
}

// Close tears down the page, the incognito context, the browser process and the profile directory
func (s *rodSession) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.incognito != nil {
		if err := s.incognito.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close incognito context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	if s.dataDir != "" {
		if err := os.RemoveAll(s.dataDir); err != nil {
			errs = append(errs, fmt.Errorf("remove profile directory: %w", err))
		}
		s.dataDir = ""
	}
	return errors.Join(errs...)
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	tp := p.page.Timeout(timeout)
	defer tp.CancelTimeout()

	wait := tp.WaitRequestIdle(requestIdle, nil, nil, nil)
	if err := tp.Navigate(url); err != nil {
		return err
	}
	wait()
	return tp.WaitLoad()
}

func (p *rodPage) Element(selector string, timeout time.Duration) (Element, error) {
	tp := p.page.Timeout(timeout)
	el, err := tp.Element(selector)
	tp.CancelTimeout()
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", selector, err)
	}
	// rebind so the element outlives the wait's deadline
	return &rodElement{el: el.Context(p.page.GetContext())}, nil
}

func (p *rodPage) Elements(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) NavigateBack() error {
	return p.page.NavigateBack()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) WithContext(ctx context.Context) Element {
	return &rodElement{el: e.el.Context(ctx)}
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) ScrollIntoView() error {
	return e.el.ScrollIntoView()
}

func (e *rodElement) Clear() error {
	if err := e.el.SelectAllText(); err != nil {
		return err
	}
	return e.el.Input("")
}

func (e *rodElement) Input(text string) error {
	return e.el.Input(text)
}

// Type sends one key event per printable ASCII character. Characters outside the
// keyboard map, such as Ñ, are inserted as text instead.
func (e *rodElement) Type(text string) error {
	for _, r := range text {
		if r < 0x20 || r > 0x7e {
			if err := e.el.Input(string(r)); err != nil {
				return err
			}
			continue
		}
		if err := e.el.Type(input.Key(r)); err != nil {
			return err
		}
	}
	return nil
}

func (e *rodElement) SetValue(value string) error {
	_, err := e.el.Eval(setValueJS, value)
	return err
}

func (e *rodElement) Value() (string, error) {
	v, err := e.el.Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

func (e *rodElement) Select(value string) error {
	return e.el.Select([]string{fmt.Sprintf(`[value="%s"]`, value)}, true, rod.SelectorTypeCSSSector)
}
