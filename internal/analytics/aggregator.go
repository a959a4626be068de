package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/repository"
)

const (
	// spikeZThreshold is the z-score at which the latest hourly bucket is
	// flagged as a spike
	spikeZThreshold = 2.0

	// stdevFloor guards the z-score divisor against near-zero variance
	stdevFloor = 0.1

	hourlyBucketLayout = "2006-01-02 15:00"
)

// Aggregator computes KPI metrics over mention sets. It is stateless; every
// method is a pure function of the window, the subject filter and the
// mention set fetched for them, plus one previous-window count sub-query
// for acceleration.
type Aggregator struct {
	repo repository.MentionRepository
	loc  *time.Location
}

// NewAggregator creates an aggregator reading from the given repository,
// resolving periods in the given timezone
func NewAggregator(repo repository.MentionRepository, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{repo: repo, loc: loc}
}

// MentionCounts returns volume metrics for the period
func (a *Aggregator) MentionCounts(ctx context.Context, personID int64, period string) (models.MentionCounts, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return models.MentionCounts{}, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return countStats(mentions), nil
}

// SentimentMetrics returns the tonality distribution for the period
func (a *Aggregator) SentimentMetrics(ctx context.Context, personID int64, period string) (models.SentimentMetrics, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return models.SentimentMetrics{}, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return sentimentStats(mentions), nil
}

// ReachMetrics returns audience metrics for the period. Unique sources are
// counted over the whole window when there is no subject filter, and over
// the filtered set when there is one.
func (a *Aggregator) ReachMetrics(ctx context.Context, personID int64, period string) (models.ReachMetrics, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return models.ReachMetrics{}, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	uniqueSources, err := a.repo.DistinctSourceCount(ctx, start, end, personID)
	if err != nil {
		return models.ReachMetrics{}, fmt.Errorf("failed to count sources: %w", err)
	}
	return reachStats(mentions, uniqueSources), nil
}

// VelocityMetrics returns mention-rate and spike metrics for the period
func (a *Aggregator) VelocityMetrics(ctx context.Context, personID int64, period string) (models.VelocityMetrics, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return models.VelocityMetrics{}, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return a.velocityMetrics(ctx, mentions, start, end, personID)
}

func (a *Aggregator) velocityMetrics(ctx context.Context, mentions []models.Mention, start, end time.Time, personID int64) (models.VelocityMetrics, error) {
	if len(mentions) == 0 {
		return models.VelocityMetrics{}, nil
	}

	// Comparison window of equal duration immediately preceding start
	prevStart := start.Add(-end.Sub(start))
	prevCount, err := a.repo.CountByWindow(ctx, prevStart, start, personID)
	if err != nil {
		return models.VelocityMetrics{}, fmt.Errorf("failed to count previous window: %w", err)
	}

	return velocityStats(mentions, prevCount, start.Sub(prevStart).Hours(), a.loc), nil
}

// TopSources returns the top-N sources by mention count for the period
func (a *Aggregator) TopSources(ctx context.Context, personID int64, period string, limit int) ([]models.SourceStat, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return topSources(mentions, limit), nil
}

// TopTopics returns the top-N topics by reference count for the period
func (a *Aggregator) TopTopics(ctx context.Context, personID int64, period string, limit int) ([]models.NameCount, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return topNames(mentions, limit, func(m models.Mention) []string { return m.Topics }), nil
}

// TopEntities returns the top-N co-mentioned entities for the period
func (a *Aggregator) TopEntities(ctx context.Context, personID int64, period string, limit int) ([]models.NameCount, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return topNames(mentions, limit, func(m models.Mention) []string { return m.Entities }), nil
}

// KeyQuotes returns up to limit quotes ordered by source influence
func (a *Aggregator) KeyQuotes(ctx context.Context, personID int64, period string, limit int) ([]models.KeyQuote, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	return keyQuotes(mentions, limit), nil
}

// BuildReport assembles the full KPI bundle for a subject and period from a
// single window fetch
func (a *Aggregator) BuildReport(ctx context.Context, personID int64, period string, topN int) (*models.Report, error) {
	start, end := ResolvePeriod(period, time.Now(), a.loc)
	mentions, err := a.repo.QueryByWindow(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}

	uniqueSources, err := a.repo.DistinctSourceCount(ctx, start, end, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}

	velocity, err := a.velocityMetrics(ctx, mentions, start, end, personID)
	if err != nil {
		return nil, err
	}

	return &models.Report{
		GeneratedAt: time.Now(),
		Period:      period,
		Mentions:    countStats(mentions),
		Sentiment:   sentimentStats(mentions),
		Reach:       reachStats(mentions, uniqueSources),
		Velocity:    velocity,
		TopSources:  topSources(mentions, topN),
		TopTopics:   topNames(mentions, topN, func(m models.Mention) []string { return m.Topics }),
		TopEntities: topNames(mentions, topN, func(m models.Mention) []string { return m.Entities }),
		KeyQuotes:   keyQuotes(mentions, topN),
	}, nil
}

func countStats(mentions []models.Mention) models.MentionCounts {
	counts := models.MentionCounts{
		Total:    len(mentions),
		BySource: make(map[string]int),
	}
	for _, m := range mentions {
		if m.Focus == models.FocusPrimary {
			counts.Focus++
		}
		counts.BySource[string(m.SourceType)]++
	}
	counts.Mention = counts.Total - counts.Focus
	return counts
}

func sentimentStats(mentions []models.Mention) models.SentimentMetrics {
	s := models.SentimentMetrics{Total: len(mentions)}
	for _, m := range mentions {
		switch m.SentimentLabel {
		case models.SentimentPositive:
			s.Positive++
		case models.SentimentNegative:
			s.Negative++
		default:
			s.Neutral++
		}
	}

	if s.Total > 0 {
		s.PositiveShare = float64(s.Positive) / float64(s.Total)
		s.NegativeShare = float64(s.Negative) / float64(s.Total)
		s.NeutralShare = float64(s.Neutral) / float64(s.Total)
	}
	s.NetSentiment = float64(s.Positive-s.Negative) / math.Max(1, float64(s.Total))

	totalInfluence := 0.0
	for _, m := range mentions {
		totalInfluence += m.Influence
	}
	for _, m := range mentions {
		weight := m.Influence / math.Max(1, totalInfluence)
		s.WeightedSentiment += m.SentimentScore * weight
	}

	return s
}

func reachStats(mentions []models.Mention, uniqueSources int) models.ReachMetrics {
	r := models.ReachMetrics{UniqueSources: uniqueSources}
	for _, m := range mentions {
		r.TotalViews += m.Views
		r.TotalInfluence += m.Influence
	}
	r.TotalReach = r.TotalViews
	if len(mentions) > 0 {
		r.AvgInfluence = r.TotalInfluence / float64(len(mentions))
	}
	return r
}

// velocityStats computes rate and spike metrics from hourly buckets. Only
// occupied buckets enter the velocity denominator, so sparse windows read
// as the rate during active hours rather than over the full window length.
func velocityStats(mentions []models.Mention, prevCount int, prevHours float64, loc *time.Location) models.VelocityMetrics {
	if len(mentions) == 0 {
		return models.VelocityMetrics{}
	}

	buckets := make(map[string]int)
	for _, m := range mentions {
		key := m.PublishedAt.In(loc).Format(hourlyBucketLayout)
		buckets[key]++
	}

	keys := make([]string, 0, len(buckets))
	total := 0
	for key, count := range buckets {
		keys = append(keys, key)
		total += count
	}
	sort.Strings(keys)

	velocityPerHour := float64(total) / float64(len(buckets))

	prevVelocity := float64(prevCount) / math.Max(1, prevHours)

	mean := velocityPerHour
	stdev := 1.0
	if len(buckets) > 1 {
		var sumSq float64
		for _, count := range buckets {
			d := float64(count) - mean
			sumSq += d * d
		}
		stdev = math.Sqrt(sumSq / float64(len(buckets)-1))
	}

	current := float64(buckets[keys[len(keys)-1]])
	zScore := (current - mean) / math.Max(stdevFloor, stdev)

	return models.VelocityMetrics{
		VelocityPerHour:    velocityPerHour,
		VelocityPerDay:     velocityPerHour * 24,
		Acceleration:       velocityPerHour - prevVelocity,
		ZScore:             zScore,
		IsSpike:            zScore >= spikeZThreshold,
		HourlyDistribution: buckets,
	}
}

func topSources(mentions []models.Mention, limit int) []models.SourceStat {
	type sourceKey struct {
		id    string
		title string
	}

	grouped := make(map[sourceKey]*models.SourceStat)
	order := make([]sourceKey, 0)
	for _, m := range mentions {
		key := sourceKey{m.SourceID, m.SourceTitle}
		stat, ok := grouped[key]
		if !ok {
			stat = &models.SourceStat{SourceID: m.SourceID, SourceTitle: m.SourceTitle}
			grouped[key] = stat
			order = append(order, key)
		}
		stat.Mentions++
		stat.Views += m.Views
	}

	stats := make([]models.SourceStat, 0, len(grouped))
	for _, key := range order {
		stats = append(stats, *grouped[key])
	}

	// Equal counts keep first-seen order via the stable sort, so output is
	// deterministic for a given mention set
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Mentions > stats[j].Mentions })

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// topNames counts name references across mentions; a mention contributes 1
// to every name it references
func topNames(mentions []models.Mention, limit int, extract func(models.Mention) []string) []models.NameCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, m := range mentions {
		for _, name := range extract(m) {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	result := make([]models.NameCount, 0, len(counts))
	for _, name := range order {
		result = append(result, models.NameCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Count > result[j].Count })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func keyQuotes(mentions []models.Mention, limit int) []models.KeyQuote {
	var quoted []models.Mention
	for _, m := range mentions {
		if m.Quote != "" {
			quoted = append(quoted, m)
		}
	}
	sort.SliceStable(quoted, func(i, j int) bool { return quoted[i].Influence > quoted[j].Influence })

	if limit > 0 && len(quoted) > limit {
		quoted = quoted[:limit]
	}

	quotes := make([]models.KeyQuote, 0, len(quoted))
	for _, m := range quoted {
		quotes = append(quotes, models.KeyQuote{
			Text:        m.Quote,
			Source:      m.SourceTitle,
			URL:         m.URL,
			PublishedAt: m.PublishedAt,
		})
	}
	return quotes
}
