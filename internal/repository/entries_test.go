package repository

import (
	"context"
	"testing"
	"time"

	"tallyboard/internal/models"
	"tallyboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *EntryRepository {
	t.Helper()
	repo := NewEntryRepository(store.NewMemoryStore())

	// Deterministic, strictly increasing clock so ids and timestamps are stable
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestAddContributionAccumulates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AddContribution(ctx, "Alice", 3)
	require.NoError(t, err)
	entry, err := repo.AddContribution(ctx, "alice", 4)
	require.NoError(t, err)

	assert.Equal(t, 7, entry.Value)
	assert.Equal(t, 2, entry.Contributions)
	assert.Equal(t, "Alice", entry.UserName, "first-seen casing is kept for display")

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "case variants must target the same entry")
}

func TestAddContributionNameIdentity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)
	_, err = repo.AddContribution(ctx, " ALICE ", 1)
	require.NoError(t, err)

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Value)
}

func TestSetTotal(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		target     string
		newValue   int
		wantOK     bool
		wantValues map[string]int
	}{
		{
			name:       "overwrites, does not accumulate",
			target:     "Alice",
			newValue:   10,
			wantOK:     true,
			wantValues: map[string]int{"Alice": 10},
		},
		{
			name:       "case-insensitive lookup",
			target:     " ALICE ",
			newValue:   2,
			wantOK:     true,
			wantValues: map[string]int{"Alice": 2},
		},
		{
			name:       "unknown name fails without mutation",
			target:     "Ghost",
			newValue:   10,
			wantOK:     false,
			wantValues: map[string]int{"Alice": 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			_, err := repo.AddContribution(ctx, "Alice", 7)
			require.NoError(t, err)

			_, ok, err := repo.SetTotal(ctx, tt.target, tt.newValue)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			entries, err := repo.Load(ctx)
			require.NoError(t, err)
			got := make(map[string]int, len(entries))
			for _, e := range entries {
				got[e.UserName] = e.Value
			}
			assert.Equal(t, tt.wantValues, got)
		})
	}
}

func TestSetTotalDoesNotTouchContributionCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AddContribution(ctx, "Alice", 3)
	require.NoError(t, err)
	entry, ok, err := repo.SetTotal(ctx, "Alice", 99)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 99, entry.Value)
	assert.Equal(t, 1, entry.Contributions)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, err := repo.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)
	b, err := repo.AddContribution(ctx, "Bob", 2)
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, a.ID))

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, b, entries[0], "surviving entries are untouched")

	// Removing an unknown id is a no-op
	require.NoError(t, repo.Remove(ctx, 424242))
	entries, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, err := repo.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)

	entry, ok, err := repo.Update(ctx, a.ID, 50)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50, entry.Value)

	_, ok, err = repo.Update(ctx, 424242, 50)
	require.NoError(t, err)
	assert.False(t, ok, "unknown id is a miss")
}

func TestLoadMalformedAndLegacy(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "garbage loads as empty",
			raw:  "{not json",
			want: 0,
		},
		{
			name: "unknown envelope version loads as empty",
			raw:  `{"version":99,"entries":[{"id":1,"userName":"Alice","value":3,"timestamp":"2024-03-01T12:00:00Z"}]}`,
			want: 0,
		},
		{
			name: "legacy bare array still loads",
			raw:  `[{"id":1,"userName":"Alice","value":3,"timestamp":"2024-03-01T12:00:00Z"}]`,
			want: 1,
		},
		{
			name: "current envelope loads",
			raw:  `{"version":1,"entries":[{"id":1,"userName":"Alice","value":3,"timestamp":"2024-03-01T12:00:00Z"}]}`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := store.NewMemoryStore()
			require.NoError(t, kv.Set(ctx, EntriesKey, tt.raw))

			repo := NewEntryRepository(kv)
			entries, err := repo.Load(ctx)
			require.NoError(t, err, "malformed data must never surface as an error")
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)
	require.NoError(t, repo.Clear(ctx))

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeduplicateMerges(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	// Drifted historical data: two case variants of the same identity
	seed := []models.Entry{
		{ID: 100, UserName: "Bob", Value: 3, Contributions: 1, Timestamp: "2024-03-01T10:00:00Z"},
		{ID: 200, UserName: "bob ", Value: 5, Contributions: 2, Timestamp: "2024-03-01T11:00:00Z"},
		{ID: 300, UserName: "Eve", Value: 2, Contributions: 1, Timestamp: "2024-03-01T09:00:00Z"},
	}
	require.NoError(t, repo.Save(ctx, seed))

	cleaned, err := repo.Deduplicate(ctx)
	require.NoError(t, err)
	require.Len(t, cleaned, 2)

	bob := cleaned[0]
	assert.Equal(t, int64(100), bob.ID, "first-encountered id survives")
	assert.Equal(t, "Bob", bob.UserName, "first-encountered casing survives")
	assert.Equal(t, 8, bob.Value, "values are summed")
	assert.Equal(t, 3, bob.Contributions, "contribution counts are summed")
	assert.Equal(t, "2024-03-01T11:00:00Z", bob.Timestamp, "latest timestamp wins")

	assert.Equal(t, "Eve", cleaned[1].UserName)
}

func TestDeduplicateIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	seed := []models.Entry{
		{ID: 100, UserName: "Bob", Value: 3, Contributions: 1, Timestamp: "2024-03-01T10:00:00Z"},
		{ID: 200, UserName: "BOB", Value: 5, Contributions: 1, Timestamp: "2024-03-01T11:00:00Z"},
	}
	require.NoError(t, repo.Save(ctx, seed))

	first, err := repo.Deduplicate(ctx)
	require.NoError(t, err)
	second, err := repo.Deduplicate(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-running on a clean collection changes nothing")
}

func TestSaveBumpsRevision(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rev, err := repo.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev)

	_, err = repo.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)

	rev, err = repo.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
}

func TestNewIDAvoidsCollisions(t *testing.T) {
	repo := newTestRepo(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	existing := []models.Entry{{ID: fixed.UnixMilli()}}
	id := repo.newID(existing)
	assert.Equal(t, fixed.UnixMilli()+1, id)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"  Alice  ", "alice"},
		{"ALICE", "alice"},
		{" bob smith ", "bob smith"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}
