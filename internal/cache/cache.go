package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/mediapulse/mentions/internal/repository"
	"github.com/sirupsen/logrus"
)

// noSubject is the sentinel keyed for lookups without a subject filter
const noSubject = "none"

// AnalysisCache memoizes expensive derived results (LLM-generated narrative
// insights) behind a deterministic key of (query, subject, period). Expired
// entries are invisible to lookups; physical eviction happens lazily on read
// and through the scheduled sweep.
type AnalysisCache struct {
	store repository.AnalysisCacheStore
	now   func() time.Time
}

// New creates a cache over the given store
func New(store repository.AnalysisCacheStore) *AnalysisCache {
	return &AnalysisCache{store: store, now: time.Now}
}

// NewWithClock creates a cache with an injected clock, for tests
func NewWithClock(store repository.AnalysisCacheStore, now func() time.Time) *AnalysisCache {
	return &AnalysisCache{store: store, now: now}
}

// QueryHash derives the deterministic cache key. Equal inputs always produce
// the equal key; there is no randomness or environment dependence.
func QueryHash(query, subjectID, period string) string {
	if subjectID == "" {
		subjectID = noSubject
	}
	combined := fmt.Sprintf("%s:%s:%s", query, subjectID, period)
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached payload for (query, subject, period), or ok=false
// when no entry exists or the entry has expired
func (c *AnalysisCache) Lookup(ctx context.Context, query, subjectID, period string) ([]byte, bool, error) {
	hash := QueryHash(query, subjectID, period)
	entry, err := c.store.GetCacheEntry(ctx, hash)
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}
	if !c.now().Before(entry.ExpiresAt) {
		logrus.Debugf("Cache entry %s expired", hash[:12])
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// Store writes a fresh entry for (query, subject, period); a concurrent
// writer with the same key wins by last completed write
func (c *AnalysisCache) Store(ctx context.Context, query, subjectID, period string, payload []byte, ttl time.Duration) error {
	now := c.now()
	entry := &models.AnalysisCacheEntry{
		QueryHash: QueryHash(query, subjectID, period),
		Query:     query,
		SubjectID: subjectID,
		Period:    period,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := c.store.PutCacheEntry(ctx, entry); err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

// Sweep removes physically expired entries; visibility is already correct
// without it, this just reclaims space
func (c *AnalysisCache) Sweep(ctx context.Context) (int64, error) {
	return c.store.DeleteExpiredCacheEntries(ctx, c.now())
}
