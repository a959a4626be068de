package repository

import (
	"context"
	"time"

	"github.com/mediapulse/mentions/internal/models"
)

// MentionRepository defines the mention lookup and persistence contract.
// personID 0 means no subject filter. Lookups return (nil, nil) when no
// row matches. Implementations must enforce uniqueness on external_id.
type MentionRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.Mention, error)
	// FindByFuzzyMatch locates a mention from the same source published within
	// [from, to] whose first 200 content characters equal contentPrefix.
	FindByFuzzyMatch(ctx context.Context, sourceID string, from, to time.Time, contentPrefix string) (*models.Mention, error)
	QueryByWindow(ctx context.Context, start, end time.Time, personID int64) ([]models.Mention, error)
	CountByWindow(ctx context.Context, start, end time.Time, personID int64) (int, error)
	DistinctSourceCount(ctx context.Context, start, end time.Time, personID int64) (int, error)
	// InsertMention persists a mention, links it to the given persons, and
	// synthesizes entity/topic rows for names seen for the first time.
	InsertMention(ctx context.Context, m *models.Mention, personIDs []int64) error
}

// PersonRepository manages tracked subjects
type PersonRepository interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	ListPersons(ctx context.Context, activeOnly bool) ([]models.Person, error)
	GetPersonBySlug(ctx context.Context, slug string) (*models.Person, error)
	// FindPersonsByNames matches names against both Name and NameVariants
	FindPersonsByNames(ctx context.Context, names []string) ([]models.Person, error)
}

// KeyRepository validates collector API keys
type KeyRepository interface {
	FindAPIKey(ctx context.Context, key string) (*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id int64) error
}

// AnalysisCacheStore is the durable backing for the TTL insight cache.
// Expiry visibility is the cache's policy; the store only persists rows.
type AnalysisCacheStore interface {
	GetCacheEntry(ctx context.Context, queryHash string) (*models.AnalysisCacheEntry, error)
	PutCacheEntry(ctx context.Context, entry *models.AnalysisCacheEntry) error
	DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error)
}

// AggregateStore persists materialized daily rollups
type AggregateStore interface {
	UpsertDailyAggregate(ctx context.Context, agg models.DailyAggregate) error
}

// Repository is the full storage contract implemented by the SQLite store
type Repository interface {
	MentionRepository
	PersonRepository
	KeyRepository
	AnalysisCacheStore
	AggregateStore
	Close() error
}
