package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediapulse/mentions/internal/dedup"
	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/sirupsen/logrus"
)

// MentionInput is the ingestion payload pushed by external collectors
type MentionInput struct {
	ExternalID  string   `json:"external_id"`
	SourceType  string   `json:"source_type"`
	SourceID    string   `json:"source_id"`
	SourceTitle string   `json:"source_title"`
	PublishedAt string   `json:"published_at"`
	Language    string   `json:"language"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	Quote       string   `json:"quote"`
	Summary     string   `json:"summary"`
	Views       int      `json:"views"`
	Forwards    int      `json:"forwards"`
	Likes       int      `json:"likes"`
	Comments    int      `json:"comments"`
	Sentiment   *struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"sentiment"`
	Focus    string   `json:"focus"`
	Persons  []string `json:"persons"`
	Entities []string `json:"entities"`
	Topics   []string `json:"topics"`
}

// Result is the outcome of one ingestion attempt
type Result struct {
	Status      string `json:"status"` // "created" or "duplicate"
	MentionID   int64  `json:"mention_id"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Service accepts mention payloads, decides new-vs-duplicate and persists
// new mentions with their relations
type Service struct {
	repo  repository.Repository
	dedup *dedup.Deduplicator
}

// NewService creates an ingestion service
func NewService(repo repository.Repository) *Service {
	return &Service{
		repo:  repo,
		dedup: dedup.New(repo),
	}
}

// Ingest normalizes and persists one mention. Malformed timestamps fail
// soft to the current time; duplicates are reported, not errored.
func (s *Service) Ingest(ctx context.Context, input MentionInput) (*Result, error) {
	content := dedup.NormalizeText(input.Content)
	title := dedup.NormalizeText(input.Title)

	publishedAt := dedup.ParseTimestamp(input.PublishedAt, time.Now())

	candidate := dedup.Candidate{
		ExternalID:  input.ExternalID,
		SourceID:    input.SourceID,
		PublishedAt: publishedAt,
		Content:     content,
	}

	existing, err := s.dedup.CheckDuplicate(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		logrus.Infof("Rejected duplicate mention from %s (existing id %d)", input.SourceID, existing.ID)
		return &Result{Status: "duplicate", MentionID: existing.ID}, nil
	}

	externalID := input.ExternalID
	if externalID == "" {
		// Scraped pages carry no stable id; synthesize one so downstream
		// consumers can still reference the row
		externalID = "gen-" + uuid.NewString()
	}

	language := input.Language
	if language == "" {
		language = dedup.DetectLanguage(title + " " + content)
	}

	mention := &models.Mention{
		ExternalID:  externalID,
		SourceType:  sourceType(input.SourceType),
		SourceID:    input.SourceID,
		SourceTitle: input.SourceTitle,
		PublishedAt: publishedAt,
		Language:    language,
		Title:       title,
		Content:     content,
		URL:         input.URL,
		Quote:       dedup.NormalizeText(input.Quote),
		Summary:     input.Summary,
		Views:       input.Views,
		Forwards:    input.Forwards,
		Likes:       input.Likes,
		Comments:    input.Comments,
		Focus:       focus(input.Focus),
		Influence:   1.0,
		Entities:    input.Entities,
		Topics:      input.Topics,
	}

	if input.Sentiment != nil {
		mention.SentimentLabel = sentimentLabel(input.Sentiment.Label)
		mention.SentimentScore = input.Sentiment.Score
	} else {
		mention.SentimentLabel = models.SentimentNeutral
	}

	var personIDs []int64
	if len(input.Persons) > 0 {
		persons, err := s.repo.FindPersonsByNames(ctx, input.Persons)
		if err != nil {
			return nil, fmt.Errorf("person lookup failed: %w", err)
		}
		for _, p := range persons {
			personIDs = append(personIDs, p.ID)
		}
	}

	if err := s.repo.InsertMention(ctx, mention, personIDs); err != nil {
		return nil, fmt.Errorf("failed to persist mention: %w", err)
	}

	logrus.Infof("Ingested mention %d from %s (%d persons linked)", mention.ID, input.SourceID, len(personIDs))

	return &Result{
		Status:      "created",
		MentionID:   mention.ID,
		Fingerprint: dedup.ContentFingerprint(input.SourceID, publishedAt, content),
	}, nil
}

func sourceType(value string) models.SourceType {
	switch models.SourceType(value) {
	case models.SourceTelegram, models.SourceNews, models.SourceSocial, models.SourceBlog:
		return models.SourceType(value)
	default:
		return models.SourceOther
	}
}

func sentimentLabel(value string) models.SentimentLabel {
	switch models.SentimentLabel(value) {
	case models.SentimentPositive, models.SentimentNegative:
		return models.SentimentLabel(value)
	default:
		return models.SentimentNeutral
	}
}

func focus(value string) models.Focus {
	if models.Focus(value) == models.FocusPrimary {
		return models.FocusPrimary
	}
	return models.FocusIncidental
}
