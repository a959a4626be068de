package notifications

import (
	"testing"
	"time"

	"github.com/mediapulse/mentions/internal/config"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *models.Report {
	return &models.Report{
		GeneratedAt: time.Date(2025, time.May, 15, 9, 0, 0, 0, time.UTC),
		Period:      "last_24h",
		PersonName:  "The Mayor",
		PersonSlug:  "mayor",
		Mentions:    models.MentionCounts{Total: 42, Focus: 10, Mention: 32},
		Sentiment:   models.SentimentMetrics{Positive: 20, Negative: 5, Neutral: 17, Total: 42, PositiveShare: 0.476, NegativeShare: 0.119, NetSentiment: 0.357},
		Reach:       models.ReachMetrics{TotalReach: 15000, UniqueSources: 8},
		Velocity:    models.VelocityMetrics{VelocityPerHour: 1.75, ZScore: 2.4, IsSpike: true},
		TopSources: []models.SourceStat{
			{SourceID: "a", SourceTitle: "Channel A", Mentions: 12, Views: 9000},
		},
		KeyQuotes: []models.KeyQuote{
			{Text: "a remarkable statement", Source: "Channel A", URL: "https://t.me/a/1", PublishedAt: time.Date(2025, time.May, 15, 8, 0, 0, 0, time.UTC)},
		},
	}
}

func TestBuildReportMessage(t *testing.T) {
	svc := NewService(&config.Config{})
	message := svc.buildReportMessage(testReport())

	assert.Equal(t, "MessageCard", message.Type)
	assert.Contains(t, message.Title, "The Mayor")
	assert.Contains(t, message.Text, "42 mentions")

	require.Len(t, message.Sections, 3)
	assert.Equal(t, "Summary", message.Sections[0].ActivityTitle)
	assert.Equal(t, "Top Sources", message.Sections[1].ActivityTitle)
	assert.Equal(t, "Key Quotes", message.Sections[2].ActivityTitle)
	assert.NotEmpty(t, message.Sections[0].Facts)
}

func TestBuildReportMessageGlobalSubject(t *testing.T) {
	svc := NewService(&config.Config{})
	report := testReport()
	report.PersonName = ""
	report.PersonSlug = ""

	message := svc.buildReportMessage(report)
	assert.Contains(t, message.Title, "all tracked persons")
}

func TestBuildAlertMessage(t *testing.T) {
	svc := NewService(&config.Config{})
	alert := &models.Alert{
		Title:   "Mention spike detected for The Mayor",
		Message: "42 mentions in the last day",
		Report:  testReport(),
	}

	message := svc.buildAlertMessage(alert)
	assert.Equal(t, alert.Title, message.Title)
	require.Len(t, message.Sections, 1)

	facts := message.Sections[0].Facts
	require.NotEmpty(t, facts)
	assert.Equal(t, "Z-Score", facts[0].Name)
	assert.Equal(t, "2.40", facts[0].Value)
}

func TestBuildEmailHTML(t *testing.T) {
	svc := NewService(&config.Config{})
	html, err := svc.buildEmailHTML(testReport())
	require.NoError(t, err)

	assert.Contains(t, html, "The Mayor")
	assert.Contains(t, html, "Channel A")
	assert.Contains(t, html, "a remarkable statement")
	assert.Contains(t, html, "SPIKE")
}

func TestBuildEmailText(t *testing.T) {
	svc := NewService(&config.Config{})
	text := svc.buildEmailText(testReport())

	assert.Contains(t, text, "Total Mentions: 42 (10 in focus)")
	assert.Contains(t, text, "SPIKE DETECTED (z-score 2.40)")
	assert.Contains(t, text, "1. Channel A - 12 mentions, 9000 views")
	assert.Contains(t, text, "https://t.me/a/1")
}
