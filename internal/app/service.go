package app

import (
	"context"
	"sync"

	"github.com/refx-online/omajinai/internal/adapters/mq/bus"
	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/perf"
	"github.com/refx-online/omajinai/pkg/logger"
)

// StatusPublisher publishes the best-effort process liveness flag.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, online bool)
}

// Service implements the dependencies of the HTTP API and owns the
// recalculation listener's lifecycle.
type Service struct {
	mu sync.Mutex

	calculator *perf.Calculator
	recalc     *Recalculator
	status     StatusPublisher

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStatusPublisher sets the liveness flag publisher.
func WithStatusPublisher(p StatusPublisher) Option {
	return func(s *Service) {
		s.status = p
	}
}

// New creates the service from its two core components.
func New(calculator *perf.Calculator, recalc *Recalculator, opts ...Option) *Service {
	s := &Service{
		calculator: calculator,
		recalc:     recalc,
		logger:     logger.Get().Named("app"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start launches the recalculation listener and announces liveness.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		if err := s.recalc.Listen(listenCtx); err != nil {
			s.logger.Error(listenCtx, "recalculation listener stopped", logger.Error(err))
		}
	}()

	if s.status != nil {
		s.status.PublishStatus(ctx, true)
	}

	s.started = true
	s.logger.Info(ctx, "performance service started",
		logger.String("trigger_channel", bus.TriggerChannel),
	)
	return nil
}

// Stop announces the process as offline and stops the listener. Any
// in-flight pass is abandoned; re-triggering recomputes idempotently.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	if s.status != nil {
		s.status.PublishStatus(ctx, false)
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "performance service stopped")
}

// Calculate serves the on-demand calculation path.
func (s *Service) Calculate(ctx context.Context, req *model.CalculationRequest) (model.PerformanceResult, error) {
	return s.calculator.Calculate(ctx, req)
}
