package dedup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	// contentPrefixLen is the number of content characters that participate
	// in fuzzy identity; trailing differences (ads, footers) are ignored
	contentPrefixLen = 200

	// fuzzyWindow absorbs clock skew and re-fetch jitter between collectors
	fuzzyWindow = time.Minute
)

// Candidate is an incoming mention before the new-vs-duplicate decision
type Candidate struct {
	ExternalID  string
	SourceID    string
	PublishedAt time.Time
	Content     string
}

// Deduplicator decides whether an incoming mention already exists
type Deduplicator struct {
	repo repository.MentionRepository
}

// New creates a deduplicator backed by the given repository
func New(repo repository.MentionRepository) *Deduplicator {
	return &Deduplicator{repo: repo}
}

// CheckDuplicate returns the existing duplicate mention, or nil when the
// candidate is new. The external id is authoritative when present; otherwise
// the decision falls back to a fuzzy match on source, publication time
// (±1 minute) and the first 200 characters of content. When several rows
// satisfy the window any one of them is an acceptable duplicate witness.
func (d *Deduplicator) CheckDuplicate(ctx context.Context, c Candidate) (*models.Mention, error) {
	if c.ExternalID != "" {
		existing, err := d.repo.FindByExternalID(ctx, c.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("external id lookup failed: %w", err)
		}
		if existing != nil {
			// Log the digest, not the raw id; collector ids can embed URLs
			logrus.Debugf("Duplicate by external id hash %s", ExternalIDHash(c.ExternalID))
			return existing, nil
		}
	}

	prefix := ContentPrefix(c.Content)
	existing, err := d.repo.FindByFuzzyMatch(ctx, c.SourceID,
		c.PublishedAt.Add(-fuzzyWindow), c.PublishedAt.Add(fuzzyWindow), prefix)
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup failed: %w", err)
	}
	if existing != nil {
		logrus.Debugf("Duplicate by content fingerprint %s", ContentFingerprint(c.SourceID, c.PublishedAt, c.Content))
	}
	return existing, nil
}

// ContentPrefix returns the first 200 characters of content
func ContentPrefix(content string) string {
	runes := []rune(content)
	if len(runes) > contentPrefixLen {
		runes = runes[:contentPrefixLen]
	}
	return string(runes)
}

// ContentFingerprint derives a stable identity digest for mentions without
// an external id, for reporting and debugging. The authoritative duplicate
// decision is the repository fuzzy lookup, not this hash.
func ContentFingerprint(sourceID string, publishedAt time.Time, content string) string {
	combined := fmt.Sprintf("%s:%s:%s", sourceID, publishedAt.UTC().Format(time.RFC3339), ContentPrefix(content))
	sum := sha1.Sum([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// ExternalIDHash digests an external id for log-safe correlation
func ExternalIDHash(externalID string) string {
	sum := sha1.Sum([]byte(externalID))
	return hex.EncodeToString(sum[:])
}

// NormalizeText collapses whitespace runs to single spaces and strips
// invalid UTF-8. It must be applied identically at write time so that
// equal-content checks stay stable.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	return strings.ToValidUTF8(text, "")
}

// DetectLanguage classifies text as uk, ru, mixed, en or unknown from
// character-script ratios. Best effort only; short or transliterated text
// will misclassify.
func DetectLanguage(text string) string {
	if text == "" {
		return "unknown"
	}

	cyrillic := 0
	latin := 0
	for _, r := range text {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			cyrillic++
		case r < 128 && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')):
			latin++
		}
	}

	totalAlpha := cyrillic + latin
	if totalAlpha == 0 {
		return "unknown"
	}

	ratio := float64(cyrillic) / float64(totalAlpha)
	switch {
	case ratio > 0.7:
		// Ukrainian-distinguishing letters separate uk from ru
		if strings.ContainsAny(text, "їєіґ") {
			return "uk"
		}
		return "ru"
	case ratio > 0.3:
		return "mixed"
	default:
		return "en"
	}
}

// ParseTimestamp parses a publication timestamp, accepting RFC 3339 and a
// few civil-time layouts collectors actually send. Malformed input fails
// soft to "now" so a bad date never rejects ingestion.
func ParseTimestamp(value string, now time.Time) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	logrus.Warnf("Unparseable timestamp %q, substituting current time", value)
	return now
}
