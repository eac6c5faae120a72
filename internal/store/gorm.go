package store

import (
	"context"
	"errors"
	"strconv"

	"tallyboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is a Store backed by a relational kv_records table. It is the
// durable backend for deployments that already run Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

// AutoMigrate creates the kv_records table
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.KVRecord{})
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var record models.KVRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return record.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	record := models.KVRecord{
		Key:   key,
		Value: value,
	}

	// INSERT ... ON CONFLICT ... DO UPDATE, same upsert shape as the mirror
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.KVRecord{}).Error
}

func (s *GormStore) Incr(ctx context.Context, key string) (int64, error) {
	var next int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.KVRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).First(&record).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = 1
			return tx.Create(&models.KVRecord{Key: key, Value: "1"}).Error
		case err != nil:
			return err
		}

		current, _ := strconv.ParseInt(record.Value, 10, 64)
		next = current + 1
		return tx.Model(&models.KVRecord{}).Where("key = ?", key).
			Update("value", strconv.FormatInt(next, 10)).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Ping checks if the database is reachable
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
