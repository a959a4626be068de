package models

import "time"

// SourceType classifies the channel a mention was observed on
type SourceType string

const (
	SourceTelegram SourceType = "telegram"
	SourceNews     SourceType = "news"
	SourceSocial   SourceType = "social"
	SourceBlog     SourceType = "blog"
	SourceOther    SourceType = "other"
)

// SentimentLabel is the tonality class assigned upstream
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Focus indicates whether the subject is the primary topic of the mention
// or an incidental reference
type Focus string

const (
	FocusPrimary    Focus = "focus"
	FocusIncidental Focus = "mention"
)

// Mention represents one observed media reference to a tracked person
type Mention struct {
	ID          int64      `json:"id"`
	ExternalID  string     `json:"external_id"`
	SourceType  SourceType `json:"source_type"`
	SourceID    string     `json:"source_id"`
	SourceTitle string     `json:"source_title"`
	PublishedAt time.Time  `json:"published_at"`
	Language    string     `json:"language"`

	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Quote   string `json:"quote,omitempty"`
	Summary string `json:"summary,omitempty"`

	// Engagement counters reported by the source
	Views    int `json:"views"`
	Forwards int `json:"forwards"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`

	// Sentiment arrives already computed upstream; the score is in [-1, 1].
	// Label/score agreement is not validated here, matching the ingestion
	// contract (a positive label with a negative score is stored as-is).
	SentimentLabel SentimentLabel `json:"sentiment_label"`
	SentimentScore float64        `json:"sentiment_score"`

	Focus Focus `json:"focus"`

	// Influence is a source credibility/reach weight, default 1.0
	Influence float64 `json:"influence"`

	// Related subjects and co-mentioned names, loaded with the mention
	Persons  []string `json:"persons,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Topics   []string `json:"topics,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Person is a tracked subject
type Person struct {
	ID           int64     `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	NameVariants []string  `json:"name_variants"`
	MinusWords   []string  `json:"minus_words"`
	Topics       []string  `json:"topics"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIKey authorizes external collectors to push mentions
type APIKey struct {
	ID         int64      `json:"id"`
	Key        string     `json:"-"`
	Name       string     `json:"name"`
	Active     bool       `json:"active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// AnalysisCacheEntry is a TTL-bounded memoized insight payload
type AnalysisCacheEntry struct {
	QueryHash string    `json:"query_hash"`
	Query     string    `json:"query"`
	SubjectID string    `json:"subject_id"`
	Period    string    `json:"period"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MentionCounts holds volume metrics for a window
type MentionCounts struct {
	Total    int            `json:"total"`
	Focus    int            `json:"focus"`
	Mention  int            `json:"mention"`
	BySource map[string]int `json:"by_source"`
}

// SentimentMetrics holds the tonality distribution for a window
type SentimentMetrics struct {
	Positive          int     `json:"positive"`
	Negative          int     `json:"negative"`
	Neutral           int     `json:"neutral"`
	Total             int     `json:"total"`
	PositiveShare     float64 `json:"pos_share"`
	NegativeShare     float64 `json:"neg_share"`
	NeutralShare      float64 `json:"neu_share"`
	NetSentiment      float64 `json:"net_sentiment"`
	WeightedSentiment float64 `json:"weighted_sentiment"`
}

// ReachMetrics holds audience and source-weight metrics for a window
type ReachMetrics struct {
	TotalViews     int     `json:"total_views"`
	TotalReach     int     `json:"total_reach"`
	TotalInfluence float64 `json:"total_influence"`
	AvgInfluence   float64 `json:"avg_influence"`
	UniqueSources  int     `json:"unique_sources"`
}

// VelocityMetrics holds mention-rate and anomaly metrics for a window
type VelocityMetrics struct {
	VelocityPerHour    float64        `json:"velocity_per_hour"`
	VelocityPerDay     float64        `json:"velocity_per_day"`
	Acceleration       float64        `json:"acceleration"`
	ZScore             float64        `json:"z_score"`
	IsSpike            bool           `json:"is_spike"`
	HourlyDistribution map[string]int `json:"hourly_distribution,omitempty"`
}

// SourceStat is one row of the top-sources ranking
type SourceStat struct {
	SourceID    string `json:"source_id"`
	SourceTitle string `json:"source_title"`
	Mentions    int    `json:"mentions"`
	Views       int    `json:"views"`
}

// NameCount is one row of the top-topics / top-entities rankings
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// KeyQuote is a notable quote ranked by source influence
type KeyQuote struct {
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Report bundles all KPI metrics for one subject and period
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Period      string           `json:"period"`
	PersonSlug  string           `json:"person_slug,omitempty"`
	PersonName  string           `json:"person_name,omitempty"`
	Mentions    MentionCounts    `json:"mentions"`
	Sentiment   SentimentMetrics `json:"sentiment"`
	Reach       ReachMetrics     `json:"reach"`
	Velocity    VelocityMetrics  `json:"velocity"`
	TopSources  []SourceStat     `json:"top_sources"`
	TopTopics   []NameCount      `json:"top_topics"`
	TopEntities []NameCount      `json:"top_entities"`
	KeyQuotes   []KeyQuote       `json:"key_quotes"`
}

// DailyAggregate is a materialized per-day rollup row
type DailyAggregate struct {
	Date           string  `json:"date"` // YYYY-MM-DD
	PersonID       int64   `json:"person_id,omitempty"`
	MentionsCount  int     `json:"mentions_count"`
	FocusCount     int     `json:"focus_count"`
	PositiveCount  int     `json:"positive_count"`
	NegativeCount  int     `json:"negative_count"`
	NeutralCount   int     `json:"neutral_count"`
	TotalReach     int     `json:"total_reach"`
	TotalInfluence float64 `json:"total_influence"`
	UniqueSources  int     `json:"unique_sources"`
}

// Alert represents an urgent notification, e.g. a mention spike
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "spike", "critical", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
