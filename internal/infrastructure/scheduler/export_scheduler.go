// Package scheduler runs the periodic order export rebuild.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// ExportRequester enqueues an order export rebuild
type ExportRequester interface {
	RequestExport(ctx context.Context, requestID string) error
}

// ExportSchedulerConfig holds configuration for the export scheduler
type ExportSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is the fixed delay between export requests
	Interval time.Duration
}

// Validate validates the configuration
func (c *ExportSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ExportScheduler enqueues an order export rebuild on a fixed interval so
// the ERP always finds a reasonably fresh snapshot when it polls. The delay
// is measured from the end of each request: a slow queue never stacks
// overlapping rebuilds.
type ExportScheduler struct {
	config    ExportSchedulerConfig
	requester ExportRequester
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewExportScheduler creates a new export scheduler
func NewExportScheduler(config ExportSchedulerConfig, requester ExportRequester, logger *zap.Logger) (*ExportScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ExportScheduler{
		config:    config,
		requester: requester,
		logger:    logger,
	}, nil
}

// Start starts the scheduler
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Export scheduler started",
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *ExportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Export scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Export scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ExportScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.config.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		requestID := uuid.NewString()
		if err := s.requester.RequestExport(ctx, requestID); err != nil {
			s.logger.Error("Failed to request order export",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("Order export requested",
				zap.String("request_id", requestID),
			)
		}

		timer.Reset(s.config.Interval)
	}
}
