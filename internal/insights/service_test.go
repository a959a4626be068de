package insights

import (
	"context"
	"testing"
	"time"

	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/cache"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	calls int
	reply string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	return f.reply, nil
}

type emptyRepo struct{}

func (emptyRepo) FindByExternalID(ctx context.Context, externalID string) (*models.Mention, error) {
	return nil, nil
}

func (emptyRepo) FindByFuzzyMatch(ctx context.Context, sourceID string, from, to time.Time, contentPrefix string) (*models.Mention, error) {
	return nil, nil
}

func (emptyRepo) QueryByWindow(ctx context.Context, start, end time.Time, personID int64) ([]models.Mention, error) {
	return nil, nil
}

func (emptyRepo) CountByWindow(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	return 0, nil
}

func (emptyRepo) DistinctSourceCount(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	return 0, nil
}

func (emptyRepo) InsertMention(ctx context.Context, m *models.Mention, personIDs []int64) error {
	return nil
}

type memoryStore struct {
	entries map[string]*models.AnalysisCacheEntry
}

func (m *memoryStore) GetCacheEntry(ctx context.Context, queryHash string) (*models.AnalysisCacheEntry, error) {
	return m.entries[queryHash], nil
}

func (m *memoryStore) PutCacheEntry(ctx context.Context, entry *models.AnalysisCacheEntry) error {
	m.entries[entry.QueryHash] = entry
	return nil
}

func (m *memoryStore) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestService(summarizer Summarizer) *Service {
	aggregator := analytics.NewAggregator(emptyRepo{}, time.UTC)
	analysisCache := cache.New(&memoryStore{entries: make(map[string]*models.AnalysisCacheEntry)})
	return NewService(aggregator, analysisCache, summarizer, time.Hour)
}

func TestSentimentTrendCachesResult(t *testing.T) {
	summarizer := &fakeSummarizer{reply: "media mood is stable"}
	svc := newTestService(summarizer)
	ctx := context.Background()
	person := &models.Person{ID: 1, Slug: "mayor", Name: "The Mayor"}

	first, err := svc.SentimentTrend(ctx, person, "last_7")
	require.NoError(t, err)
	assert.Equal(t, "sentiment_trend", first.Type)
	assert.Equal(t, "media mood is stable", first.Analysis)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, summarizer.calls)

	second, err := svc.SentimentTrend(ctx, person, "last_7")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, 1, summarizer.calls, "cached result must not re-invoke the summarizer")

	// A different period is a cache miss
	_, err = svc.SentimentTrend(ctx, person, "last_30")
	require.NoError(t, err)
	assert.Equal(t, 2, summarizer.calls)
}

func TestSentimentTrendSubjectsDoNotCollide(t *testing.T) {
	summarizer := &fakeSummarizer{reply: "analysis"}
	svc := newTestService(summarizer)
	ctx := context.Background()

	_, err := svc.SentimentTrend(ctx, &models.Person{ID: 1, Slug: "mayor", Name: "A"}, "last_7")
	require.NoError(t, err)
	_, err = svc.SentimentTrend(ctx, &models.Person{ID: 2, Slug: "governor", Name: "B"}, "last_7")
	require.NoError(t, err)
	_, err = svc.SentimentTrend(ctx, nil, "last_7")
	require.NoError(t, err)

	assert.Equal(t, 3, summarizer.calls, "each subject keys its own cache entry")
}

func TestSpikeAnalysis(t *testing.T) {
	summarizer := &fakeSummarizer{reply: "organic spike, no action needed"}
	svc := newTestService(summarizer)
	ctx := context.Background()
	person := &models.Person{ID: 1, Slug: "mayor", Name: "The Mayor"}

	insight, err := svc.SpikeAnalysis(ctx, person, "last_24h")
	require.NoError(t, err)
	assert.Equal(t, "spike_analysis", insight.Type)
	assert.Equal(t, "organic spike, no action needed", insight.Analysis)

	// Spike and sentiment analyses of the same subject/period are distinct
	// cache entries
	_, err = svc.SentimentTrend(ctx, person, "last_24h")
	require.NoError(t, err)
	assert.Equal(t, 2, summarizer.calls)
}

func TestCustomQuestionNotCached(t *testing.T) {
	summarizer := &fakeSummarizer{reply: "short answer"}
	svc := newTestService(summarizer)
	ctx := context.Background()
	person := &models.Person{ID: 1, Slug: "mayor", Name: "The Mayor"}

	for i := 0; i < 2; i++ {
		insight, err := svc.CustomQuestion(ctx, person, "last_7", "what changed this week?")
		require.NoError(t, err)
		assert.Equal(t, "custom_question", insight.Type)
		assert.False(t, insight.FromCache)
	}
	assert.Equal(t, 2, summarizer.calls, "free-form questions bypass the cache")
}
