package scheduler

import (
	"context"
	"time"

	"github.com/mediapulse/mentions/internal/cache"
	"github.com/mediapulse/mentions/internal/config"
	"github.com/mediapulse/mentions/internal/reporting"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service handles scheduling of reporting and maintenance tasks
type Service struct {
	config           *config.Config
	reportingService *reporting.Service
	analysisCache    *cache.AnalysisCache
	cron             *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, reportingService *reporting.Service, analysisCache *cache.AnalysisCache) *Service {
	return &Service{
		config:           cfg,
		reportingService: reportingService,
		analysisCache:    analysisCache,
		cron:             cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.ReportSchedule {
	case "daily":
		// Run daily at 9 AM
		cronExpression = "0 0 9 * * *"
	case "weekly":
		// Run weekly on Monday at 9 AM
		cronExpression = "0 0 9 * * MON"
	default:
		cronExpression = "0 0 9 * * *"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled report run")
		if err := s.reportingService.RunScheduledReport(); err != nil {
			logrus.Errorf("Scheduled report run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// Spike checks every 4 hours
	_, err = s.cron.AddFunc("0 0 */4 * * *", func() {
		logrus.Info("Starting scheduled spike check")
		if err := s.reportingService.RunSpikeCheck(); err != nil {
			logrus.Errorf("Scheduled spike check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// Hourly cache sweep; expired entries are already invisible to lookups,
	// this just reclaims space
	_, err = s.cron.AddFunc("0 30 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.analysisCache.Sweep(ctx); err != nil {
			logrus.Errorf("Cache sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s report schedule (plus 4-hourly spike checks)", s.config.ReportSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
