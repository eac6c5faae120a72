package models

import (
	"time"
)

// Entry is one persisted tally record. There is at most one entry per
// case-insensitive trimmed user name once the deduplication pass has run.
type Entry struct {
	ID            int64  `json:"id"`
	UserName      string `json:"userName"`
	Value         int    `json:"value"`
	Contributions int    `json:"contributions"`
	Timestamp     string `json:"timestamp"`
}

// Time parses the entry timestamp. Unparseable timestamps sort as the zero
// time so they never win a latest-wins merge.
func (e Entry) Time() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		return t
	}
	return time.Time{}
}

// EntryRecord is the relational mirror of an Entry, written asynchronously by
// the worker pool. The key-value blob stays the source of truth; this table
// exists for reporting and durability only.
type EntryRecord struct {
	ID            int64     `gorm:"primarykey" json:"id"`
	UserName      string    `gorm:"uniqueIndex;not null" json:"user_name"`
	Value         int       `gorm:"not null" json:"value"`
	Contributions int       `gorm:"not null" json:"contributions"`
	Timestamp     time.Time `json:"timestamp"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (EntryRecord) TableName() string {
	return "entries"
}

// KVRecord backs the Postgres implementation of the key-value store.
type KVRecord struct {
	Key       string    `gorm:"primaryKey;column:key" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (KVRecord) TableName() string {
	return "kv_records"
}
