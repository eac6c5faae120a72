package repository

import (
	"context"
	"testing"

	"tallyboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAdminName(t *testing.T) {
	ctx := context.Background()
	repo := NewAdminRepository(store.NewMemoryStore())

	require.NoError(t, repo.RecordAdminName(ctx, "Alice"))
	require.NoError(t, repo.RecordAdminName(ctx, " ALICE "))
	require.NoError(t, repo.RecordAdminName(ctx, "Bob"))

	names, err := repo.AdminNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names, "case variants are one membership")

	set, err := repo.AdminSet(ctx)
	require.NoError(t, err)
	assert.True(t, set["alice"])
	assert.True(t, set["bob"])
	assert.False(t, set["eve"])
}

func TestAdminNamesMalformed(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, AdminNamesKey, "{broken"))

	repo := NewAdminRepository(kv)
	names, err := repo.AdminNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "garbage means no badges, not a crash")
}

func TestShowAllToggle(t *testing.T) {
	ctx := context.Background()
	repo := NewAdminRepository(store.NewMemoryStore())

	showAll, err := repo.ShowAll(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, showAll, "defaults to the single-card view")

	require.NoError(t, repo.SetShowAll(ctx, "Alice", true))

	// The flag follows the identity, not the casing
	showAll, err = repo.ShowAll(ctx, " ALICE ")
	require.NoError(t, err)
	assert.True(t, showAll)
}
