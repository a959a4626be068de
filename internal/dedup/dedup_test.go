package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/mediapulse/mentions/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo answers lookups from an in-memory mention slice, scanning the
// fuzzy window the same way the SQLite store does
type fakeRepo struct {
	mentions []models.Mention
}

func (f *fakeRepo) FindByExternalID(ctx context.Context, externalID string) (*models.Mention, error) {
	for i := range f.mentions {
		if f.mentions[i].ExternalID == externalID {
			return &f.mentions[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindByFuzzyMatch(ctx context.Context, sourceID string, from, to time.Time, contentPrefix string) (*models.Mention, error) {
	for i := range f.mentions {
		m := &f.mentions[i]
		if m.SourceID != sourceID {
			continue
		}
		if m.PublishedAt.Before(from) || m.PublishedAt.After(to) {
			continue
		}
		if ContentPrefix(m.Content) == contentPrefix {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) QueryByWindow(ctx context.Context, start, end time.Time, personID int64) ([]models.Mention, error) {
	return nil, nil
}

func (f *fakeRepo) CountByWindow(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	return 0, nil
}

func (f *fakeRepo) DistinctSourceCount(ctx context.Context, start, end time.Time, personID int64) (int, error) {
	return 0, nil
}

func (f *fakeRepo) InsertMention(ctx context.Context, m *models.Mention, personIDs []int64) error {
	return nil
}

func TestCheckDuplicateByExternalID(t *testing.T) {
	published := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{mentions: []models.Mention{
		{ID: 1, ExternalID: "tg-123", SourceID: "channel-a", PublishedAt: published, Content: "original text"},
	}}
	d := New(repo)

	existing, err := d.CheckDuplicate(context.Background(), Candidate{
		ExternalID:  "tg-123",
		SourceID:    "channel-b", // different source must not matter
		PublishedAt: published.Add(48 * time.Hour),
		Content:     "completely different",
	})
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, int64(1), existing.ID)
}

func TestCheckDuplicateFuzzyWindow(t *testing.T) {
	published := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	content := "Breaking: the minister announced a new reform package today."
	repo := &fakeRepo{mentions: []models.Mention{
		{ID: 1, SourceID: "channel-a", PublishedAt: published, Content: content},
	}}
	d := New(repo)

	tests := []struct {
		name      string
		offset    time.Duration
		duplicate bool
	}{
		{"59 seconds later", 59 * time.Second, true},
		{"exactly one minute", time.Minute, true},
		{"61 seconds later", 61 * time.Second, false},
		{"59 seconds earlier", -59 * time.Second, true},
		{"61 seconds earlier", -61 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing, err := d.CheckDuplicate(context.Background(), Candidate{
				SourceID:    "channel-a",
				PublishedAt: published.Add(tt.offset),
				Content:     content,
			})
			require.NoError(t, err)
			if tt.duplicate {
				assert.NotNil(t, existing)
			} else {
				assert.Nil(t, existing)
			}
		})
	}
}

func TestCheckDuplicateFuzzyNeedsSameSourceAndPrefix(t *testing.T) {
	published := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{mentions: []models.Mention{
		{ID: 1, SourceID: "channel-a", PublishedAt: published, Content: "same text"},
	}}
	d := New(repo)

	// Same time, different source
	existing, err := d.CheckDuplicate(context.Background(), Candidate{
		SourceID: "channel-b", PublishedAt: published, Content: "same text",
	})
	require.NoError(t, err)
	assert.Nil(t, existing)

	// Same source and time, different content
	existing, err = d.CheckDuplicate(context.Background(), Candidate{
		SourceID: "channel-a", PublishedAt: published, Content: "other text",
	})
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestCheckDuplicateIgnoresTrailingContent(t *testing.T) {
	published := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	head := ""
	for len([]rune(head)) < 200 {
		head += "x"
	}
	repo := &fakeRepo{mentions: []models.Mention{
		{ID: 1, SourceID: "channel-a", PublishedAt: published, Content: head + " original footer"},
	}}
	d := New(repo)

	existing, err := d.CheckDuplicate(context.Background(), Candidate{
		SourceID: "channel-a", PublishedAt: published, Content: head + " reposted with different footer",
	})
	require.NoError(t, err)
	assert.NotNil(t, existing, "only the first 200 characters participate in identity")
}

func TestContentPrefix(t *testing.T) {
	assert.Equal(t, "short", ContentPrefix("short"))

	// Cyrillic runes count as characters, not bytes
	long := ""
	for i := 0; i < 250; i++ {
		long += "ї"
	}
	prefix := ContentPrefix(long)
	assert.Equal(t, 200, len([]rune(prefix)))
}

func TestContentFingerprintDeterministic(t *testing.T) {
	at := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	a := ContentFingerprint("src", at, "text")
	b := ContentFingerprint("src", at, "text")
	assert.Equal(t, a, b)
	assert.Len(t, a, 40)

	assert.NotEqual(t, a, ContentFingerprint("src2", at, "text"))
	assert.NotEqual(t, a, ContentFingerprint("src", at.Add(time.Second), "text"))
}

func TestExternalIDHash(t *testing.T) {
	a := ExternalIDHash("tg-123")
	assert.Equal(t, a, ExternalIDHash("tg-123"))
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, ExternalIDHash("tg-124"))
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  hello   world  ", "hello world"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"already normal", "already normal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in))
	}

	assert.Equal(t, "ab", NormalizeText("a\xffb"), "invalid UTF-8 is stripped")
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"ukrainian", "Президент України підписав новий закон", "uk"},
		{"russian", "Президент подписал новый закон сегодня", "ru"},
		{"english", "The president signed a new law today", "en"},
		{"mixed", "Президент signed новый important закон today and more words", "mixed"},
		{"empty", "", "unknown"},
		{"digits only", "12345 !!!", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-05-14T10:30:00Z", time.Date(2025, time.May, 14, 10, 30, 0, 0, time.UTC)},
		{"2025-05-14T10:30:00.123456Z", time.Date(2025, time.May, 14, 10, 30, 0, 123456000, time.UTC)},
		{"2025-05-14T10:30:00", time.Date(2025, time.May, 14, 10, 30, 0, 0, time.UTC)},
		{"2025-05-14 10:30:00", time.Date(2025, time.May, 14, 10, 30, 0, 0, time.UTC)},
		{"2025-05-14", time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := ParseTimestamp(tt.in, now)
		assert.True(t, tt.want.Equal(got), "parse %q: want %v, got %v", tt.in, tt.want, got)
	}

	// Malformed input fails soft to the provided now
	assert.True(t, now.Equal(ParseTimestamp("not a date", now)))
	assert.True(t, now.Equal(ParseTimestamp("", now)))
}
