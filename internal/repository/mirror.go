package repository

import (
	"context"
	"fmt"

	"tallyboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirrorRepository writes per-entry rows into Postgres. The key-value blob is
// the source of truth; the mirror is written asynchronously by the worker
// pool and is never read back on the request path.
type MirrorRepository struct {
	db *gorm.DB
}

// NewMirrorRepository creates a new mirror repository
func NewMirrorRepository(db *gorm.DB) *MirrorRepository {
	return &MirrorRepository{
		db: db,
	}
}

// UpsertEntry creates or updates the row mirroring an entry.
// Uses ON CONFLICT to handle upserts efficiently.
func (r *MirrorRepository) UpsertEntry(ctx context.Context, entry models.Entry) error {
	record := models.EntryRecord{
		ID:            entry.ID,
		UserName:      entry.UserName,
		Value:         entry.Value,
		Contributions: entry.Contributions,
		Timestamp:     entry.Time(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_name", "value", "contributions", "timestamp", "updated_at"}),
	}).Create(&record).Error
}

// DeleteEntry removes the row mirroring an entry
func (r *MirrorRepository) DeleteEntry(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.EntryRecord{}).Error
}

// ReplaceAll swaps the whole mirror for a new snapshot in one transaction.
// Used after the deduplication pass and after clear-all, where individual
// upserts cannot express rows that disappeared.
func (r *MirrorRepository) ReplaceAll(ctx context.Context, entries []models.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.EntryRecord{}).Error; err != nil {
			return fmt.Errorf("failed to truncate mirror: %w", err)
		}

		if len(entries) == 0 {
			return nil
		}

		records := make([]models.EntryRecord, len(entries))
		for i, entry := range entries {
			records[i] = models.EntryRecord{
				ID:            entry.ID,
				UserName:      entry.UserName,
				Value:         entry.Value,
				Contributions: entry.Contributions,
				Timestamp:     entry.Time(),
			}
		}
		return tx.CreateInBatches(records, 500).Error
	})
}

// CountEntries returns the number of mirrored rows
func (r *MirrorRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EntryRecord{}).Count(&count).Error
	return count, err
}

// Ping checks if database is reachable
func (r *MirrorRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *MirrorRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations for the mirror table
func (r *MirrorRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.EntryRecord{})
}
