package serve

import (
	"context"
	"sync"
	"time"

	"github.com/verdantci/evergreen/internal/logger"
	"github.com/verdantci/evergreen/internal/resolver"
)

// ScanFunc performs one full scan and returns its report.
type ScanFunc func(ctx context.Context) (resolver.ScanReport, error)

// Scheduler runs scans on a fixed interval and on demand via Trigger. Scans
// never overlap: a trigger during a running scan is queued, at most one deep.
type Scheduler struct {
	interval time.Duration
	scan     ScanFunc
	metrics  *Metrics
	trigger  chan struct{}

	mu         sync.RWMutex
	lastReport *resolver.ScanReport
	lastErr    error
}

// NewScheduler creates a scheduler. interval <= 0 disables periodic scans,
// leaving only webhook triggers.
func NewScheduler(interval time.Duration, scan ScanFunc, metrics *Metrics) *Scheduler {
	return &Scheduler{
		interval: interval,
		scan:     scan,
		metrics:  metrics,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate scan. Returns false when a scan is already
// queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastReport returns the most recent scan report, if any.
func (s *Scheduler) LastReport() (*resolver.ScanReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.lastErr
}

// Run blocks until ctx is canceled, executing scans on the interval and on
// triggers.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
		logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	} else {
		logger.Info().Msg("scheduler started, periodic scans disabled")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-tick:
			s.runScan(ctx)
		case <-s.trigger:
			s.runScan(ctx)
		}
	}
}

func (s *Scheduler) runScan(ctx context.Context) {
	logger.Info().Msg("starting scheduled scan")
	report, err := s.scan(ctx)

	if s.metrics != nil {
		s.metrics.ObserveScan(report, err)
	}

	s.mu.Lock()
	s.lastReport = &report
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Msg("scheduled scan failed")
		return
	}
	logger.Info().
		Int("dockerfiles", report.DockerfilesScanned).
		Int("images", report.ImagesScanned).
		Int("updates", report.UpdatesFound).
		Msg("scheduled scan finished")
}
