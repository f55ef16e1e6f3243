package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/lock"
	"github.com/medflow/hospital-erp/pkg/logger"
)

const restockLockKey = "restock-scan"

// Scanner is the work the scheduler runs on each tick.
type Scanner interface {
	Scan(ctx context.Context) (*ScanResult, error)
}

// RestockScheduler runs the restock scan on a cron schedule. The scan holds
// a lease so replicas sharing the lock backend do not scan concurrently.
type RestockScheduler struct {
	scanner  Scanner
	locker   lock.Locker
	schedule string
	leaseTTL time.Duration
	timeout  time.Duration
	cron     *cron.Cron
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewRestockScheduler creates a scheduler. schedule accepts standard five
// field cron expressions and descriptors such as @hourly.
func NewRestockScheduler(scanner Scanner, locker lock.Locker, schedule string, leaseTTL, timeout time.Duration, log *logger.Logger) *RestockScheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if leaseTTL < timeout {
		leaseTTL = timeout
	}
	return &RestockScheduler{
		scanner:  scanner,
		locker:   locker,
		schedule: schedule,
		leaseTTL: leaseTTL,
		timeout:  timeout,
		cron:     cron.New(),
		logger:   log.WithComponent("restock-scheduler"),
	}
}

// Start registers the job and starts the cron loop in the background.
func (s *RestockScheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Error().Err(err).Msg("restock scan failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid restock schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("restock scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running scan to finish.
func (s *RestockScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("restock scheduler stopped")
}

// RunOnce runs one scan synchronously. It returns lock.ErrNotAcquired when
// another scan holds the lease.
func (s *RestockScheduler) RunOnce(ctx context.Context) (*ScanResult, error) {
	release, err := s.locker.Acquire(ctx, restockLockKey, s.leaseTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Debug().Msg("restock scan already running elsewhere, skipping")
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release restock lease")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("restock scan cycle completed")
	return result, nil
}
