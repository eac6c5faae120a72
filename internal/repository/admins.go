package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"tallyboard/internal/store"
)

const (
	// AdminNamesKey is the store key for the set of names that have ever
	// logged in with the admin role. Used only to badge aggregation output.
	AdminNamesKey = "tally:admin-names"

	// visibilityKeyPrefix scopes the per-user leaderboard toggle flag
	visibilityKeyPrefix = "tally:visibility:"
)

// AdminRepository owns the admin-names set and the per-user leaderboard
// visibility preference, both small side collections next to the entries.
type AdminRepository struct {
	store store.Store
	mu    sync.Mutex
}

// NewAdminRepository creates a repository for the side collections
func NewAdminRepository(s store.Store) *AdminRepository {
	return &AdminRepository{
		store: s,
	}
}

// AdminNames returns every name ever recorded as an admin, original casing
func (r *AdminRepository) AdminNames(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, AdminNamesKey)
	if err != nil {
		if err == store.ErrNotFound {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to load admin names: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		// Fail soft like the entries blob: garbage means no badges, not a crash.
		return []string{}, nil
	}
	return names, nil
}

// AdminSet returns the admin names as a normalized membership set
func (r *AdminRepository) AdminSet(ctx context.Context) (map[string]bool, error) {
	names, err := r.AdminNames(ctx)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[Normalize(name)] = true
	}
	return set, nil
}

// RecordAdminName adds a name to the admin set unless a case-insensitive
// match is already present. The first-seen casing is the one kept.
func (r *AdminRepository) RecordAdminName(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, err := r.AdminNames(ctx)
	if err != nil {
		return err
	}

	normalized := Normalize(name)
	for _, existing := range names {
		if Normalize(existing) == normalized {
			return nil
		}
	}

	names = append(names, strings.TrimSpace(name))
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to serialize admin names: %w", err)
	}
	return r.store.Set(ctx, AdminNamesKey, string(raw))
}

// ShowAll reports whether the user has opted into seeing all contributors.
// Defaults to false: contributors see only their own card.
func (r *AdminRepository) ShowAll(ctx context.Context, name string) (bool, error) {
	raw, err := r.store.Get(ctx, visibilityKeyPrefix+Normalize(name))
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return raw == "true", nil
}

// SetShowAll persists the leaderboard toggle for a user
func (r *AdminRepository) SetShowAll(ctx context.Context, name string, showAll bool) error {
	value := "false"
	if showAll {
		value = "true"
	}
	return r.store.Set(ctx, visibilityKeyPrefix+Normalize(name), value)
}
