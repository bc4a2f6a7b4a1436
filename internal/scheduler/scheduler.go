package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/retailops/stockaudit/internal/config"
	"github.com/retailops/stockaudit/internal/repository/mongodb"
	"github.com/retailops/stockaudit/internal/repository/sheets"
	"github.com/retailops/stockaudit/internal/service/report"
)

// Scheduler manages the report auto-refresh poll and the daily monitoring
// snapshot job.
type Scheduler struct {
	cron      *cron.Cron
	reportSvc *report.Service
	journal   mongodb.Repository
	publisher sheets.Publisher
	cfg       config.ReportingConfig
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance. publisher may be nil when
// no summary spreadsheet is configured.
func NewScheduler(cfg config.ReportingConfig, reportSvc *report.Service, journal mongodb.Repository, publisher sheets.Publisher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		location = time.UTC
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(location)),
		reportSvc: reportSvc,
		journal:   journal,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.String("refresh", s.cfg.RefreshSchedule),
		zap.String("snapshot", s.cfg.SnapshotSchedule))

	if _, err := s.cron.AddFunc(s.cfg.RefreshSchedule, s.refreshReports); err != nil {
		s.logger.Error("failed to schedule report refresh", zap.Error(err))
	}
	if _, err := s.cron.AddFunc(s.cfg.SnapshotSchedule, s.publishDailySnapshot); err != nil {
		s.logger.Error("failed to schedule daily snapshot", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// refreshReports polls the audit store in the background. Pagination state
// on the reporting side survives these refreshes; only user-driven filter
// changes reset it.
func (s *Scheduler) refreshReports() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.reportSvc.Refresh(ctx, report.BackgroundRefresh); err != nil {
		s.logger.Error("background report refresh failed", zap.Error(err))
	}
}

func (s *Scheduler) publishDailySnapshot() {
	s.logger.Info("generating daily monitoring snapshot")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.reportSvc.Refresh(ctx, report.BackgroundRefresh); err != nil {
		s.logger.Error("snapshot refresh failed", zap.Error(err))
		return
	}

	snapshot := report.Snapshot(s.reportSvc.Records(), time.Now())
	if s.journal != nil {
		if err := s.journal.SaveMonitoringSnapshot(ctx, snapshot); err != nil {
			s.logger.Error("failed to store monitoring snapshot", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil {
			s.logger.Error("failed to publish monitoring snapshot", zap.Error(err))
		} else {
			s.logger.Info("monitoring snapshot published")
		}
	}
}
