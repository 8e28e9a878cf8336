package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/debugsito/scrap-sunat/config"
	"github.com/debugsito/scrap-sunat/models"
)

// PersistentConnectionMessage is the Failure reason once every attempt hit a connection failure
const PersistentConnectionMessage = "Error de conexión: No se pudo conectar al sitio web de SUNAT. El servicio puede estar temporalmente no disponible."

// Runner executes one full attempt
type Runner interface {
	Run(ctx context.Context, req models.SearchRequest, opts SearchOptions) models.Outcome
}

// Supervisor retries whole sessions that end in a connection failure
type Supervisor struct {
	runner Runner
	cfg    config.RetryConfig
	logger *zap.Logger

	sleep  func(time.Duration)
	jitter func(lo, hi time.Duration) time.Duration
}

// NewSupervisor creates a new Supervisor
func NewSupervisor(runner Runner, cfg config.RetryConfig, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Supervisor{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
		jitter: randomBetween,
	}
}

// NewSearcher wires the rod launcher, the orchestrator and the supervisor from configuration
func NewSearcher(cfg *config.Config, logger *zap.Logger) *Supervisor {
	launcher := NewRodLauncher(cfg.Browser, logger)
	orchestrator := NewOrchestrator(launcher, nil, cfg.Scraper, logger)
	return NewSupervisor(orchestrator, cfg.Retry, logger)
}

// Search implements Searcher
func (s *Supervisor) Search(ctx context.Context, req models.SearchRequest, opts SearchOptions) (models.Outcome, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return models.Outcome{}, err
	}

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		outcome := s.runner.Run(ctx, req, opts)
		if outcome.Kind != models.OutcomeConnectionFailure {
			return outcome, nil
		}

		s.logger.Warn("connection failure",
			zap.Stringer("request", req),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.cfg.MaxAttempts),
			zap.String("message", outcome.Message))

		if attempt == s.cfg.MaxAttempts-1 || ctx.Err() != nil {
			break
		}
		wait := time.Duration(attempt+1)*s.cfg.BackoffStep + s.jitter(s.cfg.JitterMin, s.cfg.JitterMax)
		s.logger.Info("retrying", zap.Duration("wait", wait))
		s.sleep(wait)
	}

	return models.ConnectionFailure(PersistentConnectionMessage), nil
}
