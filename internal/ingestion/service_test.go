package ingestion

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *repository.SQLiteRepository) {
	t.Helper()
	repo, err := repository.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewService(repo), repo
}

func telegramInput() MentionInput {
	return MentionInput{
		ExternalID:  "tg-100",
		SourceType:  "telegram",
		SourceID:    "channel-a",
		SourceTitle: "Channel A",
		PublishedAt: "2025-05-15T12:00:00Z",
		Content:     "The  mayor   opened a new\nbridge today",
		Views:       500,
		Persons:     []string{"The Mayor"},
		Topics:      []string{"infrastructure"},
	}
}

func TestIngestCreatesMention(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	person := &models.Person{Slug: "mayor", Name: "The Mayor", Active: true}
	require.NoError(t, repo.CreatePerson(ctx, person))

	result, err := svc.Ingest(ctx, telegramInput())
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)
	assert.NotZero(t, result.MentionID)
	assert.NotEmpty(t, result.Fingerprint)

	stored, err := repo.FindByExternalID(ctx, "tg-100")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "The mayor opened a new bridge today", stored.Content, "whitespace is normalized at write time")
	assert.Equal(t, models.SentimentNeutral, stored.SentimentLabel, "missing sentiment defaults to neutral")
	assert.Equal(t, models.FocusIncidental, stored.Focus)
	assert.InDelta(t, 1.0, stored.Influence, 1e-9)

	// The person link feeds the subject filter
	start := time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)
	filtered, err := repo.QueryByWindow(ctx, start, start.Add(24*time.Hour), person.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, []string{"infrastructure"}, filtered[0].Topics)
}

func TestIngestDuplicateByExternalID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, telegramInput())
	require.NoError(t, err)

	// Same external id re-pushed with drifted metadata
	again := telegramInput()
	again.Content = "edited content"
	again.PublishedAt = "2025-05-16T09:00:00Z"

	result, err := svc.Ingest(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", result.Status)
	assert.Equal(t, first.MentionID, result.MentionID)
}

func TestIngestDuplicateByFuzzyMatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := telegramInput()
	input.ExternalID = ""
	first, err := svc.Ingest(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "created", first.Status)

	// Re-fetched 30 seconds later by another collector, still no external id
	refetch := input
	refetch.PublishedAt = "2025-05-15T12:00:30Z"
	result, err := svc.Ingest(ctx, refetch)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", result.Status)
	assert.Equal(t, first.MentionID, result.MentionID)

	// Two minutes later it counts as a distinct mention
	later := input
	later.PublishedAt = "2025-05-15T12:02:00Z"
	result, err = svc.Ingest(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)
}

func TestIngestSynthesizesExternalID(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	input := telegramInput()
	input.ExternalID = ""
	result, err := svc.Ingest(ctx, input)
	require.NoError(t, err)

	start := time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)
	mentions, err := repo.QueryByWindow(ctx, start, start.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, result.MentionID, mentions[0].ID)
	assert.True(t, strings.HasPrefix(mentions[0].ExternalID, "gen-"))
}

func TestIngestDetectsLanguageWhenMissing(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	input := telegramInput()
	input.Content = "Мер міста відкрив новий міст сьогодні"
	require.NotEmpty(t, input.Content)
	input.Language = ""

	result, err := svc.Ingest(ctx, input)
	require.NoError(t, err)

	stored, err := repo.FindByExternalID(ctx, input.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.MentionID, stored.ID)
	assert.Equal(t, "uk", stored.Language)
}

func TestIngestMalformedTimestampFailsSoft(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	input := telegramInput()
	input.PublishedAt = "yesterday-ish"

	before := time.Now().Add(-time.Minute)
	result, err := svc.Ingest(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)

	stored, err := repo.FindByExternalID(ctx, input.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.PublishedAt.After(before), "bad timestamp substitutes the current time")
}

func TestIngestSentimentLabelValidation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	input := telegramInput()
	input.Sentiment = &struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}{Label: "ecstatic", Score: 0.9}

	_, err := svc.Ingest(ctx, input)
	require.NoError(t, err)

	stored, err := repo.FindByExternalID(ctx, input.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	// Unknown labels coerce to neutral; the score is kept as-is
	assert.Equal(t, models.SentimentNeutral, stored.SentimentLabel)
	assert.InDelta(t, 0.9, stored.SentimentScore, 1e-9)
}

func TestSourceTypeValidation(t *testing.T) {
	assert.Equal(t, models.SourceTelegram, sourceType("telegram"))
	assert.Equal(t, models.SourceNews, sourceType("news"))
	assert.Equal(t, models.SourceOther, sourceType("rss"))
	assert.Equal(t, models.SourceOther, sourceType(""))
}

func TestFocusValidation(t *testing.T) {
	assert.Equal(t, models.FocusPrimary, focus("focus"))
	assert.Equal(t, models.FocusIncidental, focus("mention"))
	assert.Equal(t, models.FocusIncidental, focus("anything"))
}
