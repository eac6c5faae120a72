package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"tallyboard/internal/models"
	"tallyboard/internal/repository"
	"tallyboard/internal/worker"
)

// TallyService handles business logic for the tally tracker: it orchestrates
// the entry repository, derives the aggregate views, and feeds the relational
// mirror through the worker pool. The mirror and pool are optional; with a
// nil pool every mutation simply skips mirroring.
type TallyService struct {
	entries    *repository.EntryRepository
	admins     *repository.AdminRepository
	mirror     *repository.MirrorRepository
	workerPool *worker.WorkerPool
}

// NewTallyService creates a new tally service
func NewTallyService(
	entries *repository.EntryRepository,
	admins *repository.AdminRepository,
	mirror *repository.MirrorRepository,
	workerPool *worker.WorkerPool,
) *TallyService {
	return &TallyService{
		entries:    entries,
		admins:     admins,
		mirror:     mirror,
		workerPool: workerPool,
	}
}

// AddContribution accumulates amount onto userName's entry, creating it on
// first contribution, and mirrors the result asynchronously.
func (s *TallyService) AddContribution(ctx context.Context, userName string, amount int) (models.Entry, error) {
	entry, err := s.entries.AddContribution(ctx, userName, amount)
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to add contribution: %w", err)
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpUpsert, Entry: entry})
	return entry, nil
}

// SetTotal overwrites userName's accumulated value. The boolean reports
// whether a matching entry existed; no entry is created on a miss.
func (s *TallyService) SetTotal(ctx context.Context, userName string, newValue int) (models.Entry, bool, error) {
	entry, ok, err := s.entries.SetTotal(ctx, userName, newValue)
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("failed to set total: %w", err)
	}
	if !ok {
		return models.Entry{}, false, nil
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpUpsert, Entry: entry})
	return entry, true, nil
}

// UpdateEntry overwrites the value of the entry with the given id
func (s *TallyService) UpdateEntry(ctx context.Context, id int64, newValue int) (models.Entry, bool, error) {
	entry, ok, err := s.entries.Update(ctx, id, newValue)
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("failed to update entry: %w", err)
	}
	if !ok {
		return models.Entry{}, false, nil
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpUpsert, Entry: entry})
	return entry, true, nil
}

// DeleteEntry removes the entry with the given id; removing an unknown id is
// a no-op.
func (s *TallyService) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.entries.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpDelete, Entry: models.Entry{ID: id}})
	return nil
}

// ClearAll wipes the whole collection
func (s *TallyService) ClearAll(ctx context.Context) error {
	if err := s.entries.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpReplace, Entries: []models.Entry{}})
	return nil
}

// Deduplicate runs the reconciliation pass that collapses case-variant
// duplicates, then replaces the mirror with the cleaned snapshot. It runs
// once at startup and is safe to re-run at any time.
func (s *TallyService) Deduplicate(ctx context.Context) ([]models.Entry, error) {
	cleaned, err := s.entries.Deduplicate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to deduplicate entries: %w", err)
	}

	s.submitMirror(worker.MirrorTask{Op: worker.OpReplace, Entries: cleaned})
	return cleaned, nil
}

// Stats returns one row per user with the admin badge applied, sorted by
// total descending. Ties keep their insertion order.
func (s *TallyService) Stats(ctx context.Context) (*models.StatsResponse, error) {
	entries, err := s.entries.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	adminSet, err := s.admins.AdminSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin names: %w", err)
	}

	rows := make([]models.StatRow, 0, len(entries))
	grandTotal := 0
	for _, entry := range entries {
		rows = append(rows, models.StatRow{
			UserName: entry.UserName,
			Total:    entry.Value,
			Count:    entry.Contributions,
			IsAdmin:  adminSet[repository.Normalize(entry.UserName)],
		})
		grandTotal += entry.Value
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})

	return &models.StatsResponse{
		Data:       rows,
		GrandTotal: grandTotal,
	}, nil
}

// GrandTotal returns the sum of all entry values, 0 when empty
func (s *TallyService) GrandTotal(ctx context.Context) (int, error) {
	entries, err := s.entries.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load entries: %w", err)
	}

	total := 0
	for _, entry := range entries {
		total += entry.Value
	}
	return total, nil
}

// History returns all entries sorted by last mutation, newest first
func (s *TallyService) History(ctx context.Context) ([]models.Entry, error) {
	entries, err := s.entries.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time().After(entries[j].Time())
	})
	return entries, nil
}

// AdminDashboard returns the stats rows restricted to users who have ever
// logged in as admin, plus their combined total.
func (s *TallyService) AdminDashboard(ctx context.Context) (*models.AdminDashboardResponse, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]models.StatRow, 0)
	combined := 0
	for _, row := range stats.Data {
		if row.IsAdmin {
			rows = append(rows, row)
			combined += row.Total
		}
	}

	return &models.AdminDashboardResponse{
		Data:          rows,
		CombinedTotal: combined,
		AdminCount:    len(rows),
	}, nil
}

// MyTotal returns the caller's own accumulated value, 0 when they have not
// contributed yet.
func (s *TallyService) MyTotal(ctx context.Context, userName string) (int, error) {
	return s.entries.GetTotal(ctx, userName)
}

// RecordAdminName adds a name to the admin badge set
func (s *TallyService) RecordAdminName(ctx context.Context, name string) error {
	return s.admins.RecordAdminName(ctx, name)
}

// ShowAll reports the caller's leaderboard visibility preference
func (s *TallyService) ShowAll(ctx context.Context, name string) (bool, error) {
	return s.admins.ShowAll(ctx, name)
}

// SetShowAll persists the caller's leaderboard visibility preference
func (s *TallyService) SetShowAll(ctx context.Context, name string, showAll bool) error {
	return s.admins.SetShowAll(ctx, name, showAll)
}

// Revision returns the current collection revision for change detection
func (s *TallyService) Revision(ctx context.Context) (int64, error) {
	return s.entries.Revision(ctx)
}

// HealthCheck checks the store and, when configured, the mirror database
func (s *TallyService) HealthCheck(ctx context.Context) error {
	if _, err := s.entries.Load(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Ping(ctx); err != nil {
			return fmt.Errorf("mirror health check failed: %w", err)
		}
	}
	return nil
}

func (s *TallyService) submitMirror(task worker.MirrorTask) {
	if s.workerPool == nil {
		return
	}
	if err := s.workerPool.Submit(task); err != nil {
		// Backpressure: the blob is saved, only the mirror lags behind.
		log.Printf("Mirror task dropped: %v", err)
	}
}
