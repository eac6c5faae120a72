package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tallyboard/internal/models"
	"tallyboard/internal/store"
)

const (
	// EntriesKey is the store key for the full entry collection
	EntriesKey = "tally:entries"

	// RevisionKey tracks the global collection revision for efficient change detection
	RevisionKey = "tally:revision"

	// entriesVersion is the serialization version of the entries envelope
	entriesVersion = 1
)

// entriesEnvelope is the versioned on-disk shape of the collection. A bare
// JSON array is still accepted on load as the legacy version-0 shape.
type entriesEnvelope struct {
	Version int            `json:"version"`
	Entries []models.Entry `json:"entries"`
}

// EntryRepository owns the entry collection: loading and saving the serialized
// blob, name-normalized merge semantics, and the deduplication pass. All
// mutations are read-modify-write on the whole blob, serialized by a mutex so
// this process is the single writer (concurrent processes sharing a store can
// still lose updates to each other; that limitation is accepted).
type EntryRepository struct {
	store store.Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewEntryRepository creates a repository on top of a key-value store
func NewEntryRepository(s store.Store) *EntryRepository {
	return &EntryRepository{
		store: s,
		now:   time.Now,
	}
}

// Normalize reduces a user name to its identity form: surrounding whitespace
// trimmed and case folded. Display always uses the original casing.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load returns the persisted collection, or an empty one when the key is
// absent or holds data we cannot make sense of. Malformed data is recovered
// silently; it never crashes a page of tallies.
func (r *EntryRepository) Load(ctx context.Context) ([]models.Entry, error) {
	raw, err := r.store.Get(ctx, EntriesKey)
	if err != nil {
		if err == store.ErrNotFound {
			return []models.Entry{}, nil
		}
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return decodeEntries(raw), nil
}

func decodeEntries(raw string) []models.Entry {
	var envelope entriesEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Version == entriesVersion {
		if envelope.Entries == nil {
			return []models.Entry{}
		}
		return envelope.Entries
	}

	// Legacy shape: a bare array without the version envelope.
	var legacy []models.Entry
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return legacy
	}

	log.Printf("Discarding malformed entries blob (%d bytes)", len(raw))
	return []models.Entry{}
}

// Save serializes and persists the full collection, replacing any prior
// value, then bumps the revision counter for change detection.
func (r *EntryRepository) Save(ctx context.Context, entries []models.Entry) error {
	envelope := entriesEnvelope{
		Version: entriesVersion,
		Entries: entries,
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize entries: %w", err)
	}

	if err := r.store.Set(ctx, EntriesKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save entries: %w", err)
	}

	if _, err := r.store.Incr(ctx, RevisionKey); err != nil {
		// The data is saved; a stale revision only delays the next broadcast.
		log.Printf("Failed to bump revision counter: %v", err)
	}

	return nil
}

// Revision returns the current collection revision, 0 when never written
func (r *EntryRepository) Revision(ctx context.Context) (int64, error) {
	raw, err := r.store.Get(ctx, RevisionKey)
	if err != nil {
		if err == store.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}

	var revision int64
	if _, err := fmt.Sscanf(raw, "%d", &revision); err != nil {
		return 0, fmt.Errorf("invalid revision value %q: %w", raw, err)
	}
	return revision, nil
}

// AddContribution accumulates amount onto the entry matching userName, or
// creates a new entry on first contribution. The updated entry is persisted
// before returning.
func (r *EntryRepository) AddContribution(ctx context.Context, userName string, amount int) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.Load(ctx)
	if err != nil {
		return models.Entry{}, err
	}

	trimmed := strings.TrimSpace(userName)
	normalized := Normalize(userName)

	for i := range entries {
		if Normalize(entries[i].UserName) == normalized {
			entries[i].Value += amount
			entries[i].Contributions++
			entries[i].Timestamp = r.timestamp()
			if err := r.Save(ctx, entries); err != nil {
				return models.Entry{}, err
			}
			return entries[i], nil
		}
	}

	entry := models.Entry{
		ID:            r.newID(entries),
		UserName:      trimmed,
		Value:         amount,
		Contributions: 1,
		Timestamp:     r.timestamp(),
	}
	entries = append(entries, entry)

	if err := r.Save(ctx, entries); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// SetTotal overwrites the value of the entry matching userName. It reports
// false without touching the collection when no entry matches; totals are
// never created implicitly.
func (r *EntryRepository) SetTotal(ctx context.Context, userName string, newValue int) (models.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.Load(ctx)
	if err != nil {
		return models.Entry{}, false, err
	}

	normalized := Normalize(userName)
	for i := range entries {
		if Normalize(entries[i].UserName) == normalized {
			entries[i].Value = newValue
			entries[i].Timestamp = r.timestamp()
			if err := r.Save(ctx, entries); err != nil {
				return models.Entry{}, false, err
			}
			return entries[i], true, nil
		}
	}

	return models.Entry{}, false, nil
}

// GetTotal returns the accumulated value for userName, 0 when absent
func (r *EntryRepository) GetTotal(ctx context.Context, userName string) (int, error) {
	entries, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}

	normalized := Normalize(userName)
	for _, entry := range entries {
		if Normalize(entry.UserName) == normalized {
			return entry.Value, nil
		}
	}
	return 0, nil
}

// Remove deletes the entry with the given id. Removing an id that does not
// exist is a no-op; the filtered collection is persisted either way.
func (r *EntryRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.Load(ctx)
	if err != nil {
		return err
	}

	filtered := make([]models.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.ID != id {
			filtered = append(filtered, entry)
		}
	}

	return r.Save(ctx, filtered)
}

// Update overwrites the value of the entry with the given id, reporting
// false when no entry matches.
func (r *EntryRepository) Update(ctx context.Context, id int64, newValue int) (models.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.Load(ctx)
	if err != nil {
		return models.Entry{}, false, err
	}

	for i := range entries {
		if entries[i].ID == id {
			entries[i].Value = newValue
			entries[i].Timestamp = r.timestamp()
			if err := r.Save(ctx, entries); err != nil {
				return models.Entry{}, false, err
			}
			return entries[i], true, nil
		}
	}

	return models.Entry{}, false, nil
}

// Clear wipes the whole collection
func (r *EntryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(ctx, EntriesKey); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	if _, err := r.store.Incr(ctx, RevisionKey); err != nil {
		log.Printf("Failed to bump revision counter: %v", err)
	}
	return nil
}

// Deduplicate collapses entries whose names normalize to the same identity:
// values and contribution counts are summed, the first-encountered entry
// keeps its casing and id, and the chronologically latest timestamp wins.
// Running it on an already-clean collection is a no-op, so it is safe to
// re-run at any time.
func (r *EntryRepository) Deduplicate(ctx context.Context) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}

	merged := make([]models.Entry, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, entry := range entries {
		normalized := Normalize(entry.UserName)

		i, seen := index[normalized]
		if !seen {
			entry.UserName = strings.TrimSpace(entry.UserName)
			index[normalized] = len(merged)
			merged = append(merged, entry)
			continue
		}

		merged[i].Value += entry.Value
		merged[i].Contributions += entry.Contributions
		if entry.Time().After(merged[i].Time()) {
			merged[i].Timestamp = entry.Timestamp
		}
	}

	if err := r.Save(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *EntryRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// newID derives an id from the current time in milliseconds, nudged forward
// past any id already taken so rapid successive creations stay unique.
func (r *EntryRepository) newID(entries []models.Entry) int64 {
	id := r.now().UnixMilli()

	taken := make(map[int64]bool, len(entries))
	for _, entry := range entries {
		taken[entry.ID] = true
	}
	for taken[id] {
		id++
	}
	return id
}
