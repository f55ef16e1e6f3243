package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/lock"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/testutil"
)

type countingScanner struct {
	calls atomic.Int32
	err   error
}

func (s *countingScanner) Scan(ctx context.Context) (*service.ScanResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &service.ScanResult{Checked: 3, Skipped: 3}, nil
}

func TestRestockScheduler_RunOnce(t *testing.T) {
	scanner := &countingScanner{}
	sched := service.NewRestockScheduler(scanner, lock.NewLocal(), "@hourly", time.Minute, time.Second, logger.Nop())

	result, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Checked)
	assert.EqualValues(t, 1, scanner.calls.Load())

	// The lease is released after each run.
	_, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, scanner.calls.Load())
}

func TestRestockScheduler_SkipsWhileLeaseHeld(t *testing.T) {
	locker := lock.NewLocal()
	release, err := locker.Acquire(context.Background(), "restock-scan", time.Minute)
	require.NoError(t, err)

	scanner := &countingScanner{}
	sched := service.NewRestockScheduler(scanner, locker, "@hourly", time.Minute, time.Second, logger.Nop())

	_, err = sched.RunOnce(context.Background())
	assert.True(t, errors.Is(err, lock.ErrNotAcquired))
	assert.EqualValues(t, 0, scanner.calls.Load())

	require.NoError(t, release(context.Background()))
	_, err = sched.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRestockScheduler_ScanErrorReleasesLease(t *testing.T) {
	scanner := &countingScanner{err: errors.Internal("database unavailable")}
	sched := service.NewRestockScheduler(scanner, lock.NewLocal(), "@hourly", time.Minute, time.Second, logger.Nop())

	_, err := sched.RunOnce(context.Background())
	require.Error(t, err)

	_, err = sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, lock.ErrNotAcquired))
	assert.EqualValues(t, 2, scanner.calls.Load())
}

func TestRestockScheduler_InvalidSchedule(t *testing.T) {
	sched := service.NewRestockScheduler(&countingScanner{}, nil, "not a schedule", 0, 0, logger.Nop())
	assert.Error(t, sched.Start(context.Background()))
}

func TestRestockScheduler_StartRunsOnSchedule(t *testing.T) {
	scanner := &countingScanner{}
	sched := service.NewRestockScheduler(scanner, nil, "@every 1s", 0, 0, logger.Nop())

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	testutil.RequireEventually(t, func() bool {
		return scanner.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond, "scheduled scan did not run")
}
