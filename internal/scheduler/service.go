package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/config"
)

// StatsSnapshotter persists the current telemetry snapshot
type StatsSnapshotter interface {
	SnapshotStats() error
}

// Service periodically persists telemetry snapshots
type Service struct {
	config      *config.Config
	snapshotter StatsSnapshotter
	cron        *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, snapshotter StatsSnapshotter) *Service {
	return &Service{
		config:      cfg,
		snapshotter: snapshotter,
		cron:        cron.New(cron.WithSeconds()),
	}
}

// Start schedules snapshots on the configured cron expression. An empty
// schedule disables them.
func (s *Service) Start() error {
	if s.config.StatsSchedule == "" {
		logrus.Info("Stats snapshots disabled (empty STATS_SCHEDULE)")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.StatsSchedule, func() {
		logrus.Debug("Starting scheduled stats snapshot")
		if err := s.snapshotter.SnapshotStats(); err != nil {
			logrus.Errorf("Scheduled stats snapshot failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", s.config.StatsSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with stats schedule %q", s.config.StatsSchedule)
	return nil
}

// Stop stops the scheduler and waits for a running snapshot to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

// Entries reports how many jobs are scheduled
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}
