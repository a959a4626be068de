package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/config"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/notifications"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/mediapulse/mentions/internal/storage"
	"github.com/sirupsen/logrus"
)

// Service produces scheduled KPI reports, archives them and raises spike
// alerts
type Service struct {
	config              *config.Config
	repo                repository.Repository
	aggregator          *analytics.Aggregator
	archive             storage.ArchiveInterface
	notificationService notifications.NotificationInterface
}

// NewService creates a reporting service
func NewService(cfg *config.Config, repo repository.Repository, aggregator *analytics.Aggregator,
	archive storage.ArchiveInterface, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		config:              cfg,
		repo:                repo,
		aggregator:          aggregator,
		archive:             archive,
		notificationService: notificationService,
	}
}

// RunScheduledReport builds the KPI report for every active person plus a
// global report, archives each and delivers them through the configured
// notification channels
func (s *Service) RunScheduledReport() error {
	start := time.Now()
	logrus.Info("Starting scheduled report run")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	persons, err := s.repo.ListPersons(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}

	// Global report first, then one per tracked person
	if err := s.buildAndDeliver(ctx, nil); err != nil {
		logrus.Errorf("Global report failed: %v", err)
	}

	errorCount := 0
	for i := range persons {
		if err := s.buildAndDeliver(ctx, &persons[i]); err != nil {
			logrus.Errorf("Report for %s failed: %v", persons[i].Slug, err)
			errorCount++
		}
	}

	logrus.Infof("Report run completed in %v (%d persons, %d errors)", time.Since(start), len(persons), errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d of %d person reports failed", errorCount, len(persons))
	}
	return nil
}

func (s *Service) buildAndDeliver(ctx context.Context, person *models.Person) error {
	personID := int64(0)
	if person != nil {
		personID = person.ID
	}

	report, err := s.aggregator.BuildReport(ctx, personID, s.config.ReportPeriod, s.config.TopN)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if person != nil {
		report.PersonSlug = person.Slug
		report.PersonName = person.Name
	}

	if err := s.archiveReport(report); err != nil {
		// Archival failure shouldn't block delivery
		logrus.Errorf("Failed to archive report: %v", err)
	}

	if err := s.rollupDailyAggregate(ctx, report, personID); err != nil {
		logrus.Errorf("Failed to write daily aggregate: %v", err)
	}

	if err := s.notificationService.SendReport(report); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	return nil
}

func (s *Service) archiveReport(report *models.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	slug := report.PersonSlug
	if slug == "" {
		slug = "all"
	}
	filename := fmt.Sprintf("reports/%s/%s.json", slug, report.GeneratedAt.Format("2006-01-02-15-04-05"))
	return s.archive.Store(filename, data)
}

func (s *Service) rollupDailyAggregate(ctx context.Context, report *models.Report, personID int64) error {
	return s.repo.UpsertDailyAggregate(ctx, models.DailyAggregate{
		Date:           report.GeneratedAt.Format("2006-01-02"),
		PersonID:       personID,
		MentionsCount:  report.Mentions.Total,
		FocusCount:     report.Mentions.Focus,
		PositiveCount:  report.Sentiment.Positive,
		NegativeCount:  report.Sentiment.Negative,
		NeutralCount:   report.Sentiment.Neutral,
		TotalReach:     report.Reach.TotalReach,
		TotalInfluence: report.Reach.TotalInfluence,
		UniqueSources:  report.Reach.UniqueSources,
	})
}

// RunSpikeCheck evaluates the spike flag for every active person and sends
// an urgent alert for each subject whose latest hourly bucket is anomalous
func (s *Service) RunSpikeCheck() error {
	start := time.Now()
	logrus.Info("Starting spike check")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	persons, err := s.repo.ListPersons(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}

	alerts := 0
	for i := range persons {
		person := &persons[i]

		report, err := s.aggregator.BuildReport(ctx, person.ID, s.config.SpikeCheckPeriod, 5)
		if err != nil {
			logrus.Errorf("Spike check for %s failed: %v", person.Slug, err)
			continue
		}

		if !report.Velocity.IsSpike {
			continue
		}

		report.PersonSlug = person.Slug
		report.PersonName = person.Name

		alert := &models.Alert{
			ID:    uuid.NewString(),
			Type:  "spike",
			Title: fmt.Sprintf("Mention spike detected for %s", person.Name),
			Message: fmt.Sprintf("%s got %d mentions over %s; the latest hour is %.1f standard deviations above the window mean.",
				person.Name, report.Mentions.Total, report.Period, report.Velocity.ZScore),
			Report:    report,
			CreatedAt: time.Now(),
		}

		if err := s.notificationService.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to send spike alert for %s: %v", person.Slug, err)
			continue
		}
		alerts++
	}

	logrus.Infof("Spike check completed in %v, sent %d alerts", time.Since(start), alerts)
	return nil
}
