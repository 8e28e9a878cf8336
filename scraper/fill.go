package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/config"
)

// FillStrategy is one technique for putting a value into a text field.
// Each attempt runs under its own Timeout; the chain verifies the field value afterwards.
type FillStrategy struct {
	Name    string
	Timeout time.Duration
	Fill    func(ctx context.Context, el Element, value string) error
}

// FillChain is evaluated in order, stopping at the first strategy that leaves the field holding the value
type FillChain []FillStrategy

// DefaultFillChain returns direct input, simulated typing and script injection, in that order
func DefaultFillChain(cfg config.ScraperConfig, sleep func(time.Duration)) FillChain {
	return FillChain{
		{Name: "direct", Timeout: cfg.FillTimeout, Fill: fillDirect},
		{Name: "type", Timeout: cfg.FillTimeout, Fill: typeFill(cfg.ClickDelay, cfg.KeystrokeDelay, sleep)},
		{Name: "script", Timeout: cfg.FillTimeout, Fill: fillScript},
	}
}

func fillDirect(_ context.Context, el Element, value string) error {
	if err := el.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return el.Input(value)
}

func typeFill(clickDelay, keystrokeDelay time.Duration, sleep func(time.Duration)) func(context.Context, Element, string) error {
	return func(ctx context.Context, el Element, value string) error {
		if err := el.Click(); err != nil {
			return fmt.Errorf("focus: %w", err)
		}
		sleep(clickDelay)
		if err := el.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, r := range value {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := el.Type(string(r)); err != nil {
				return fmt.Errorf("type %q: %w", r, err)
			}
			sleep(keystrokeDelay)
		}
		return nil
	}
}

func fillScript(_ context.Context, el Element, value string) error {
	return el.SetValue(value)
}

// Fill runs the chain against el. It returns a *FatalError when every strategy fails.
func (c FillChain) Fill(ctx context.Context, el Element, value string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, s := range c {
		err := c.attempt(ctx, s, el, value)
		if err == nil {
			logger.Debug("field filled", zap.String("strategy", s.Name))
			return nil
		}
		logger.Warn("fill strategy failed, trying next", zap.String("strategy", s.Name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	return &FatalError{Reason: "no se pudo llenar el campo de búsqueda", Err: errors.Join(errs...)}
}

func (c FillChain) attempt(ctx context.Context, s FillStrategy, el Element, value string) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	bound := el.WithContext(ctx)
	if err := s.Fill(ctx, bound, value); err != nil {
		return err
	}

	got, err := bound.Value()
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(value)) {
		return fmt.Errorf("field holds %q after fill", got)
	}
	return nil
}
