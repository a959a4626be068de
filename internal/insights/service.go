package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mediapulse/mentions/internal/analytics"
	"github.com/mediapulse/mentions/internal/cache"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/sirupsen/logrus"
)

// Summarizer produces a narrative analysis from a prompt. The concrete
// implementation is an external LLM service; its failures propagate to the
// caller rather than being masked.
type Summarizer interface {
	Summarize(ctx context.Context, system, prompt string) (string, error)
}

// Insight is a cached narrative analysis
type Insight struct {
	Type        string      `json:"type"`
	Analysis    string      `json:"analysis"`
	Metrics     interface{} `json:"metrics,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
	FromCache   bool        `json:"from_cache,omitempty"`
}

// Service answers analytical questions about a subject's media presence,
// memoizing LLM output through the analysis cache
type Service struct {
	aggregator *analytics.Aggregator
	cache      *cache.AnalysisCache
	summarizer Summarizer
	ttl        time.Duration
}

// NewService creates an insights service
func NewService(aggregator *analytics.Aggregator, analysisCache *cache.AnalysisCache, summarizer Summarizer, ttl time.Duration) *Service {
	return &Service{
		aggregator: aggregator,
		cache:      analysisCache,
		summarizer: summarizer,
		ttl:        ttl,
	}
}

// SentimentTrend analyzes the tonality trend and risk factors for a subject
func (s *Service) SentimentTrend(ctx context.Context, person *models.Person, period string) (*Insight, error) {
	subjectID := subjectKey(person)
	query := fmt.Sprintf("sentiment_trend:%s:%s", subjectID, period)

	if cached, ok := s.lookupCached(ctx, query, subjectID, period); ok {
		return cached, nil
	}

	personID := int64(0)
	name := "all tracked persons"
	if person != nil {
		personID = person.ID
		name = person.Name
	}

	sentiment, err := s.aggregator.SentimentMetrics(ctx, personID, period)
	if err != nil {
		return nil, err
	}
	counts, err := s.aggregator.MentionCounts(ctx, personID, period)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Analyze the media metrics for "%s" over period %s:

Metrics:
- Total mentions: %d
- In focus: %d
- Positive: %d (%.1f%%)
- Negative: %d (%.1f%%)
- Neutral: %d (%.1f%%)
- Net sentiment score: %.2f
- Influence-weighted sentiment: %.2f

Give a short analysis (3-5 sentences):
1. Overall media mood
2. Key risk factors, if any
3. Reputation management recommendations
4. Trend direction (improving, deteriorating, or stable)`,
		name, period,
		counts.Total, counts.Focus,
		sentiment.Positive, sentiment.PositiveShare*100,
		sentiment.Negative, sentiment.NegativeShare*100,
		sentiment.Neutral, sentiment.NeutralShare*100,
		sentiment.NetSentiment, sentiment.WeightedSentiment)

	analysis, err := s.summarizer.Summarize(ctx,
		"You are an experienced PR analyst with deep knowledge of the media landscape.", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarizer failed: %w", err)
	}

	insight := &Insight{
		Type:        "sentiment_trend",
		Analysis:    analysis,
		Metrics:     sentiment,
		GeneratedAt: time.Now(),
	}
	s.storeCached(ctx, query, subjectID, period, insight)
	return insight, nil
}

// SpikeAnalysis assesses whether a detected mention spike looks organic or
// like an emerging crisis
func (s *Service) SpikeAnalysis(ctx context.Context, person *models.Person, period string) (*Insight, error) {
	subjectID := subjectKey(person)
	query := fmt.Sprintf("spike_analysis:%s:%s", subjectID, period)

	if cached, ok := s.lookupCached(ctx, query, subjectID, period); ok {
		return cached, nil
	}

	personID := int64(0)
	name := "all tracked persons"
	if person != nil {
		personID = person.ID
		name = person.Name
	}

	velocity, err := s.aggregator.VelocityMetrics(ctx, personID, period)
	if err != nil {
		return nil, err
	}
	topSources, err := s.aggregator.TopSources(ctx, personID, period, 5)
	if err != nil {
		return nil, err
	}
	topTopics, err := s.aggregator.TopTopics(ctx, personID, period, 5)
	if err != nil {
		return nil, err
	}

	var sourceLines, topicLines []string
	for _, src := range topSources {
		sourceLines = append(sourceLines, fmt.Sprintf("- %s: %d mentions", src.SourceTitle, src.Mentions))
	}
	for _, t := range topTopics {
		topicLines = append(topicLines, fmt.Sprintf("- %s: %d mentions", t.Name, t.Count))
	}

	spikeText := "no"
	if velocity.IsSpike {
		spikeText = "yes"
	}

	prompt := fmt.Sprintf(`Analyze the mention spike for "%s":

Indicators:
- Z-score: %.2f
- Spike detected: %s
- Velocity: %.1f mentions/hour
- Acceleration: %+.2f

Top sources:
%s

Top topics:
%s

Give a quick assessment (2-4 sentences):
1. Is this an organic spike or a crisis?
2. Main trend drivers
3. Recommended actions`,
		name, velocity.ZScore, spikeText,
		velocity.VelocityPerHour, velocity.Acceleration,
		strings.Join(sourceLines, "\n"), strings.Join(topicLines, "\n"))

	analysis, err := s.summarizer.Summarize(ctx,
		"You are an expert in crisis management and media analysis.", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarizer failed: %w", err)
	}

	insight := &Insight{
		Type:        "spike_analysis",
		Analysis:    analysis,
		Metrics:     velocity,
		GeneratedAt: time.Now(),
	}
	s.storeCached(ctx, query, subjectID, period, insight)
	return insight, nil
}

// CustomQuestion answers a free-form analytical question with the full KPI
// context. Not cached: the question text is arbitrary and rarely repeats.
func (s *Service) CustomQuestion(ctx context.Context, person *models.Person, period, question string) (*Insight, error) {
	personID := int64(0)
	name := "all tracked persons"
	if person != nil {
		personID = person.ID
		name = person.Name
	}

	report, err := s.aggregator.BuildReport(ctx, personID, period, 10)
	if err != nil {
		return nil, err
	}

	var topicNames, entityNames []string
	for _, t := range report.TopTopics {
		topicNames = append(topicNames, t.Name)
	}
	for _, e := range report.TopEntities {
		entityNames = append(entityNames, e.Name)
	}

	prompt := fmt.Sprintf(`Analytics context for "%s" over period %s:

Volume: %d mentions (%d in focus)
Reach: %d views
Sentiment: %.0f%% positive, %.0f%% negative, %.0f%% neutral
Velocity: %.1f mentions/hour
Unique sources: %d

Top topics: %s
Top entities: %s

Question: %s

Answer briefly and to the point:`,
		name, period,
		report.Mentions.Total, report.Mentions.Focus,
		report.Reach.TotalReach,
		report.Sentiment.PositiveShare*100, report.Sentiment.NegativeShare*100, report.Sentiment.NeutralShare*100,
		report.Velocity.VelocityPerHour,
		report.Reach.UniqueSources,
		strings.Join(topicNames, ", "), strings.Join(entityNames, ", "),
		question)

	analysis, err := s.summarizer.Summarize(ctx,
		"You are an experienced PR and media analyst. Answer from the provided data, briefly and professionally.", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarizer failed: %w", err)
	}

	return &Insight{
		Type:        "custom_question",
		Analysis:    analysis,
		GeneratedAt: time.Now(),
	}, nil
}

func (s *Service) lookupCached(ctx context.Context, query, subjectID, period string) (*Insight, bool) {
	payload, ok, err := s.cache.Lookup(ctx, query, subjectID, period)
	if err != nil {
		// A broken cache degrades to recomputation, not failure
		logrus.Warnf("Cache lookup error for %s: %v", query, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var insight Insight
	if err := json.Unmarshal(payload, &insight); err != nil {
		logrus.Warnf("Corrupt cache payload for %s: %v", query, err)
		return nil, false
	}
	insight.FromCache = true
	return &insight, true
}

func (s *Service) storeCached(ctx context.Context, query, subjectID, period string, insight *Insight) {
	payload, err := json.Marshal(insight)
	if err != nil {
		logrus.Warnf("Failed to marshal insight for caching: %v", err)
		return
	}
	if err := s.cache.Store(ctx, query, subjectID, period, payload, s.ttl); err != nil {
		logrus.Warnf("Failed to cache insight %s: %v", query, err)
	}
}

func subjectKey(person *models.Person) string {
	if person == nil {
		return ""
	}
	return person.Slug
}
