package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is the concrete storage layer backed by SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// Ensure SQLiteRepository implements Repository
var _ Repository = (*SQLiteRepository)(nil)

// NewSQLite opens the database at path and applies the schema
func NewSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// Serialize writers; SQLite allows one at a time anyway
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.Infof("Database initialized at %s", path)
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		name_variants TEXT NOT NULL DEFAULT '[]',
		minus_words TEXT NOT NULL DEFAULT '[]',
		topics TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS mentions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT UNIQUE,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_title TEXT,
		published_at DATETIME NOT NULL,
		language TEXT DEFAULT 'uk',
		title TEXT,
		content TEXT,
		url TEXT,
		quote TEXT,
		summary TEXT,
		views INTEGER DEFAULT 0,
		forwards INTEGER DEFAULT 0,
		likes INTEGER DEFAULT 0,
		comments INTEGER DEFAULT 0,
		sentiment_label TEXT,
		sentiment_score REAL DEFAULT 0,
		focus TEXT DEFAULT 'mention',
		influence REAL DEFAULT 1.0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_mentions_published ON mentions(published_at);
	CREATE INDEX IF NOT EXISTS idx_mentions_source ON mentions(source_id);
	CREATE INDEX IF NOT EXISTS idx_mentions_source_published ON mentions(source_id, published_at);

	CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		entity_type TEXT DEFAULT 'general'
	);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS person_mention (
		mention_id INTEGER NOT NULL REFERENCES mentions(id),
		person_id INTEGER NOT NULL REFERENCES persons(id),
		UNIQUE(mention_id, person_id)
	);

	CREATE TABLE IF NOT EXISTS mention_entity (
		mention_id INTEGER NOT NULL REFERENCES mentions(id),
		entity_id INTEGER NOT NULL REFERENCES entities(id),
		UNIQUE(mention_id, entity_id)
	);

	CREATE TABLE IF NOT EXISTS mention_topic (
		mention_id INTEGER NOT NULL REFERENCES mentions(id),
		topic_id INTEGER NOT NULL REFERENCES topics(id),
		UNIQUE(mention_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		name TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS analysis_cache (
		query_hash TEXT PRIMARY KEY,
		query TEXT,
		subject_id TEXT,
		period TEXT,
		payload BLOB,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_expires ON analysis_cache(expires_at);

	CREATE TABLE IF NOT EXISTS daily_aggregates (
		date TEXT NOT NULL,
		person_id INTEGER NOT NULL DEFAULT 0,
		mentions_count INTEGER DEFAULT 0,
		focus_count INTEGER DEFAULT 0,
		positive_count INTEGER DEFAULT 0,
		negative_count INTEGER DEFAULT 0,
		neutral_count INTEGER DEFAULT 0,
		total_reach INTEGER DEFAULT 0,
		total_influence REAL DEFAULT 0,
		unique_sources INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(date, person_id)
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

const mentionColumns = `id, COALESCE(external_id, ''), source_type, source_id, COALESCE(source_title, ''),
	published_at, COALESCE(language, ''), COALESCE(title, ''), COALESCE(content, ''), COALESCE(url, ''),
	COALESCE(quote, ''), COALESCE(summary, ''), views, forwards, likes, comments,
	COALESCE(sentiment_label, 'neutral'), sentiment_score, focus, influence, created_at`

func scanMention(row interface{ Scan(...interface{}) error }) (*models.Mention, error) {
	var m models.Mention
	var sourceType, label, focus string
	err := row.Scan(
		&m.ID, &m.ExternalID, &sourceType, &m.SourceID, &m.SourceTitle,
		&m.PublishedAt, &m.Language, &m.Title, &m.Content, &m.URL,
		&m.Quote, &m.Summary, &m.Views, &m.Forwards, &m.Likes, &m.Comments,
		&label, &m.SentimentScore, &focus, &m.Influence, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.SourceType = models.SourceType(sourceType)
	m.SentimentLabel = models.SentimentLabel(label)
	m.Focus = models.Focus(focus)
	return &m, nil
}

// FindByExternalID returns the mention with the given external id, or nil
func (r *SQLiteRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Mention, error) {
	if externalID == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mentionColumns+` FROM mentions WHERE external_id = ? LIMIT 1`, externalID)
	m, err := scanMention(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mention by external id: %w", err)
	}
	return m, nil
}

// fuzzyPrefixLen is the number of content characters that participate in
// fuzzy identity; it must stay equal to the prefix length the deduplicator
// computes
const fuzzyPrefixLen = 200

// FindByFuzzyMatch returns a mention from sourceID published within [from, to]
// whose first 200 content characters equal contentPrefix, or nil.
// contentPrefix must already be truncated to 200 characters.
func (r *SQLiteRepository) FindByFuzzyMatch(ctx context.Context, sourceID string, from, to time.Time, contentPrefix string) (*models.Mention, error) {
	// Both sides truncate to the fixed identity length: substr counts
	// characters, matching the rune-based prefix computed by the
	// deduplicator. Truncating to the candidate's length instead would turn
	// the equality into a starts-with match and misreport short mentions as
	// duplicates of longer same-source posts.
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mentionColumns+` FROM mentions
		 WHERE source_id = ? AND published_at BETWEEN ? AND ?
		   AND substr(COALESCE(content, ''), 1, ?) = ?
		 LIMIT 1`,
		sourceID, from, to, fuzzyPrefixLen, contentPrefix)
	m, err := scanMention(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to run fuzzy mention lookup: %w", err)
	}
	return m, nil
}

// QueryByWindow returns all mentions in [start, end), optionally filtered by
// person, with entity and topic names loaded.
func (r *SQLiteRepository) QueryByWindow(ctx context.Context, start, end time.Time, personID int64) ([]models.Mention, error) {
	// person_mention columns don't collide with the mention column names,
	// so the select list stays unqualified even when joined
	query := `SELECT ` + mentionColumns + ` FROM mentions m`
	args := []interface{}{}
	if personID != 0 {
		query += ` JOIN person_mention pm ON pm.mention_id = m.id AND pm.person_id = ?`
		args = append(args, personID)
	}
	query += ` WHERE m.published_at >= ? AND m.published_at < ? ORDER BY m.published_at`
	args = append(args, start, end)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions by window: %w", err)
	}
	defer rows.Close()

	var mentions []models.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention row: %w", err)
		}
		mentions = append(mentions, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadRelations(ctx, mentions); err != nil {
		return nil, err
	}
	return mentions, nil
}

// loadRelations fills Persons, Entities and Topics for the given mentions
func (r *SQLiteRepository) loadRelations(ctx context.Context, mentions []models.Mention) error {
	if len(mentions) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Mention, len(mentions))
	placeholders := make([]string, 0, len(mentions))
	args := make([]interface{}, 0, len(mentions))
	for i := range mentions {
		byID[mentions[i].ID] = &mentions[i]
		placeholders = append(placeholders, "?")
		args = append(args, mentions[i].ID)
	}
	in := strings.Join(placeholders, ",")

	entityRows, err := r.db.QueryContext(ctx,
		`SELECT me.mention_id, e.name FROM mention_entity me
		 JOIN entities e ON e.id = me.entity_id
		 WHERE me.mention_id IN (`+in+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load mention entities: %w", err)
	}
	defer entityRows.Close()
	for entityRows.Next() {
		var id int64
		var name string
		if err := entityRows.Scan(&id, &name); err != nil {
			return err
		}
		if m, ok := byID[id]; ok {
			m.Entities = append(m.Entities, name)
		}
	}

	topicRows, err := r.db.QueryContext(ctx,
		`SELECT mt.mention_id, t.name FROM mention_topic mt
		 JOIN topics t ON t.id = mt.topic_id
		 WHERE mt.mention_id IN (`+in+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load mention topics: %w", err)
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var id int64
		var name string
		if err := topicRows.Scan(&id, &name); err != nil {
			return err
		}
		if m, ok := byID[id]; ok {
			m.Topics = append(m.Topics, name)
		}
	}

	personRows, err := r.db.QueryContext(ctx,
		`SELECT pm.mention_id, p.name FROM person_mention pm
		 JOIN persons p ON p.id = pm.person_id
		 WHERE pm.mention_id IN (`+in+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load mention persons: %w", err)
	}
	defer personRows.Close()
	for personRows.Next() {
		var id int64
		var name string
		if err := personRows.Scan(&id, &name); err != nil {
			return err
		}
		if m, ok := byID[id]; ok {
			m.Persons = append(m.Persons, name)
		}
	}

	return nil
}

// CountByWindow returns the number of mentions in [start, end)
func (r *SQLiteRepository) CountByWindow(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	query := `SELECT COUNT(*) FROM mentions m`
	args := []interface{}{}
	if personID != 0 {
		query += ` JOIN person_mention pm ON pm.mention_id = m.id AND pm.person_id = ?`
		args = append(args, personID)
	}
	query += ` WHERE m.published_at >= ? AND m.published_at < ?`
	args = append(args, start, end)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mentions: %w", err)
	}
	return count, nil
}

// DistinctSourceCount returns the number of distinct source ids in [start, end)
func (r *SQLiteRepository) DistinctSourceCount(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	query := `SELECT COUNT(DISTINCT m.source_id) FROM mentions m`
	args := []interface{}{}
	if personID != 0 {
		query += ` JOIN person_mention pm ON pm.mention_id = m.id AND pm.person_id = ?`
		args = append(args, personID)
	}
	query += ` WHERE m.published_at >= ? AND m.published_at < ?`
	args = append(args, start, end)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct sources: %w", err)
	}
	return count, nil
}

// InsertMention persists a mention and its relations in one transaction.
// An empty external id is stored as NULL so the UNIQUE constraint only
// applies to real identifiers.
func (r *SQLiteRepository) InsertMention(ctx context.Context, m *models.Mention, personIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO mentions (external_id, source_type, source_id, source_title, published_at,
			language, title, content, url, quote, summary,
			views, forwards, likes, comments,
			sentiment_label, sentiment_score, focus, influence)
		 VALUES (NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ExternalID, string(m.SourceType), m.SourceID, m.SourceTitle, m.PublishedAt,
		m.Language, m.Title, m.Content, m.URL, m.Quote, m.Summary,
		m.Views, m.Forwards, m.Likes, m.Comments,
		string(m.SentimentLabel), m.SentimentScore, string(m.Focus), m.Influence)
	if err != nil {
		return fmt.Errorf("failed to insert mention: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id

	for _, personID := range personIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO person_mention (mention_id, person_id) VALUES (?, ?)`,
			id, personID); err != nil {
			return fmt.Errorf("failed to link person %d: %w", personID, err)
		}
	}

	for _, name := range m.Entities {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entities (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to upsert entity %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO mention_entity (mention_id, entity_id)
			 SELECT ?, id FROM entities WHERE name = ?`, id, name); err != nil {
			return fmt.Errorf("failed to link entity %q: %w", name, err)
		}
	}

	for _, name := range m.Topics {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO topics (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to upsert topic %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO mention_topic (mention_id, topic_id)
			 SELECT ?, id FROM topics WHERE name = ?`, id, name); err != nil {
			return fmt.Errorf("failed to link topic %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// CreatePerson inserts a new tracked subject
func (r *SQLiteRepository) CreatePerson(ctx context.Context, p *models.Person) error {
	variants, _ := json.Marshal(p.NameVariants)
	minus, _ := json.Marshal(p.MinusWords)
	topics, _ := json.Marshal(p.Topics)

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO persons (slug, name, name_variants, minus_words, topics, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Name, string(variants), string(minus), string(topics), p.Active)
	if err != nil {
		return fmt.Errorf("failed to create person %q: %w", p.Slug, err)
	}
	p.ID, _ = result.LastInsertId()
	return nil
}

func scanPerson(row interface{ Scan(...interface{}) error }) (*models.Person, error) {
	var p models.Person
	var variants, minus, topics string
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &variants, &minus, &topics, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(variants), &p.NameVariants)
	json.Unmarshal([]byte(minus), &p.MinusWords)
	json.Unmarshal([]byte(topics), &p.Topics)
	return &p, nil
}

const personColumns = `id, slug, name, name_variants, minus_words, topics, active, created_at`

// ListPersons returns tracked subjects, optionally only active ones
func (r *SQLiteRepository) ListPersons(ctx context.Context, activeOnly bool) ([]models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// GetPersonBySlug returns the person with the given slug, or nil
func (r *SQLiteRepository) GetPersonBySlug(ctx context.Context, slug string) (*models.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE slug = ?`, slug)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %q: %w", slug, err)
	}
	return p, nil
}

// FindPersonsByNames matches the given names against person names and
// name variants. Matching is exact per name; text-level variant matching
// belongs to the collectors.
func (r *SQLiteRepository) FindPersonsByNames(ctx context.Context, names []string) ([]models.Person, error) {
	if len(names) == 0 {
		return nil, nil
	}

	persons, err := r.ListPersons(ctx, false)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var matched []models.Person
	for _, p := range persons {
		if wanted[p.Name] {
			matched = append(matched, p)
			continue
		}
		for _, v := range p.NameVariants {
			if wanted[v] {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched, nil
}

// FindAPIKey returns the active API key record matching key, or nil
func (r *SQLiteRepository) FindAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	var k models.APIKey
	var lastUsed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, key, COALESCE(name, ''), active, last_used_at
		 FROM api_keys WHERE key = ? AND active = 1`, key).
		Scan(&k.ID, &k.Key, &k.Name, &k.Active, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return &k, nil
}

// TouchAPIKey records the last use of an API key
func (r *SQLiteRepository) TouchAPIKey(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// GetCacheEntry returns the cache row for queryHash regardless of expiry, or nil
func (r *SQLiteRepository) GetCacheEntry(ctx context.Context, queryHash string) (*models.AnalysisCacheEntry, error) {
	var e models.AnalysisCacheEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT query_hash, COALESCE(query, ''), COALESCE(subject_id, ''), COALESCE(period, ''),
			payload, created_at, expires_at
		 FROM analysis_cache WHERE query_hash = ?`, queryHash).
		Scan(&e.QueryHash, &e.Query, &e.SubjectID, &e.Period, &e.Payload, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &e, nil
}

// PutCacheEntry stores a cache row, replacing any previous row with the
// same hash (last write wins)
func (r *SQLiteRepository) PutCacheEntry(ctx context.Context, entry *models.AnalysisCacheEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (query_hash, query, subject_id, period, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query_hash) DO UPDATE SET
			query = excluded.query,
			subject_id = excluded.subject_id,
			period = excluded.period,
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		entry.QueryHash, entry.Query, entry.SubjectID, entry.Period,
		entry.Payload, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// DeleteExpiredCacheEntries removes rows whose expiry has passed
func (r *SQLiteRepository) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		logrus.Debugf("Swept %d expired cache entries", deleted)
	}
	return deleted, nil
}

// UpsertDailyAggregate writes or refreshes one rollup row
func (r *SQLiteRepository) UpsertDailyAggregate(ctx context.Context, agg models.DailyAggregate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_aggregates (date, person_id, mentions_count, focus_count,
			positive_count, negative_count, neutral_count,
			total_reach, total_influence, unique_sources, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, person_id) DO UPDATE SET
			mentions_count = excluded.mentions_count,
			focus_count = excluded.focus_count,
			positive_count = excluded.positive_count,
			negative_count = excluded.negative_count,
			neutral_count = excluded.neutral_count,
			total_reach = excluded.total_reach,
			total_influence = excluded.total_influence,
			unique_sources = excluded.unique_sources,
			updated_at = excluded.updated_at`,
		agg.Date, agg.PersonID, agg.MentionsCount, agg.FocusCount,
		agg.PositiveCount, agg.NegativeCount, agg.NeutralCount,
		agg.TotalReach, agg.TotalInfluence, agg.UniqueSources, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert daily aggregate: %w", err)
	}
	return nil
}

// Close closes the database
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
