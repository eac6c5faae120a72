package service

import (
	"context"
	"testing"
	"time"

	"tallyboard/internal/repository"
	"tallyboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *TallyService {
	t.Helper()
	kv := store.NewMemoryStore()
	return NewTallyService(
		repository.NewEntryRepository(kv),
		repository.NewAdminRepository(kv),
		nil, // no mirror
		nil, // no worker pool
	)
}

func TestStatsOrderingAndBadges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "Alice", 3)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Bob", 5)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Eve", 2)
	require.NoError(t, err)

	// Alice once logged in as admin, with different casing than her entry
	require.NoError(t, svc.RecordAdminName(ctx, "ALICE"))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	require.Len(t, stats.Data, 3)
	assert.Equal(t, "Bob", stats.Data[0].UserName)
	assert.Equal(t, "Alice", stats.Data[1].UserName)
	assert.Equal(t, "Eve", stats.Data[2].UserName)
	assert.Equal(t, 10, stats.GrandTotal)

	assert.True(t, stats.Data[1].IsAdmin, "badge is case-insensitive")
	assert.False(t, stats.Data[0].IsAdmin)
	assert.Equal(t, 1, stats.Data[1].Count)
}

func TestStatsStableOnTies(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "First", 5)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Second", 5)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Data, 2)
	assert.Equal(t, "First", stats.Data[0].UserName, "ties keep insertion order")
	assert.Equal(t, "Second", stats.Data[1].UserName)
}

func TestGrandTotal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	total, err := svc.GrandTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "empty collection totals zero")

	for name, amount := range map[string]int{"A": 3, "B": 5, "C": 2} {
		_, err := svc.AddContribution(ctx, name, amount)
		require.NoError(t, err)
	}

	total, err = svc.GrandTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "Old", 1)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = svc.AddContribution(ctx, "New", 1)
	require.NoError(t, err)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "New", history[0].UserName)
	assert.Equal(t, "Old", history[1].UserName)
}

func TestAdminDashboard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "Alice", 10)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Bob", 7)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Eve", 3)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAdminName(ctx, "alice"))
	require.NoError(t, svc.RecordAdminName(ctx, "Eve"))

	dashboard, err := svc.AdminDashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, dashboard.AdminCount)
	assert.Equal(t, 13, dashboard.CombinedTotal)
	require.Len(t, dashboard.Data, 2)
	assert.Equal(t, "Alice", dashboard.Data[0].UserName, "dashboard stays sorted by total")
}

func TestMyTotal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	total, err := svc.MyTotal(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 0, total, "no contribution yet means zero, not an error")

	_, err = svc.AddContribution(ctx, "Alice", 4)
	require.NoError(t, err)

	total, err = svc.MyTotal(ctx, " ALICE ")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestSetTotalMissLeavesCollectionAlone(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "Alice", 7)
	require.NoError(t, err)

	_, ok, err := svc.SetTotal(ctx, "Ghost", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	total, err := svc.MyTotal(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.Data, 1, "no implicit creation on a miss")
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	a, err := svc.AddContribution(ctx, "Alice", 1)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "Bob", 2)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEntry(ctx, a.ID))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Data, 1)
	assert.Equal(t, "Bob", stats.Data[0].UserName)

	require.NoError(t, svc.ClearAll(ctx))
	total, err := svc.GrandTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDeduplicatePropagates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.AddContribution(ctx, "Alice", 3)
	require.NoError(t, err)
	_, err = svc.AddContribution(ctx, "alice", 4)
	require.NoError(t, err)

	cleaned, err := svc.Deduplicate(ctx)
	require.NoError(t, err)
	require.Len(t, cleaned, 1)
	assert.Equal(t, 7, cleaned[0].Value)
}
