package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/innohealth/notify-engine/internal/observability"
)

const defaultSweepInterval = 5 * time.Second

// Sweeper periodically delivers due scheduled notifications and retries
// releases from failed email sends.
type Sweeper struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
	metrics      *observability.Metrics
	interval     time.Duration
}

func NewSweeper(orchestrator *Orchestrator, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		orchestrator: orchestrator,
		logger:       logger,
		interval:     interval,
	}, nil
}

func (s *Sweeper) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	dispatched, err := s.orchestrator.ProcessScheduled(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}

	if dispatched > 0 {
		if s.metrics != nil {
			s.metrics.AddScheduledDispatched(dispatched)
		}
		s.logger.Info("sweep dispatched due notifications", zap.Int("count", dispatched))
	}
}
