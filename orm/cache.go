package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/va6996/mensaman/log"
)

// DefaultDSN keeps the cache in a shared in-memory sqlite database that lives as long as the process.
const DefaultDSN = "file::memory:?cache=shared"

// APICache stores cached upstream responses
type APICache struct {
	Key       string `gorm:"primaryKey;column:cache_key"`
	Value     []byte `gorm:"type:blob"` // raw JSON body
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// Open connects to sqlite and migrates the cache table.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.AutoMigrate(&APICache{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return db, nil
}

// GetCacheEntry retrieves an entry that has not expired at now
func GetCacheEntry(db *gorm.DB, key string, now time.Time) (*APICache, error) {
	var entry APICache
	err := db.Where("cache_key = ? AND expires_at > ?", key, now).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetCacheEntry upserts a cache entry
func SetCacheEntry(db *gorm.DB, key string, value []byte, ttl time.Duration, now time.Time) error {
	entry := APICache{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return db.Save(&entry).Error
}

// CleanupCache removes entries expired at now and returns how many were deleted
func CleanupCache(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at <= ?", now).Delete(&APICache{})
	return res.RowsAffected, res.Error
}

// Store is a TTL cache for upstream payloads backed by gorm.
type Store struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Get returns the cached value of key. Misses and database errors both report false.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, err := GetCacheEntry(s.db.WithContext(ctx), key, s.now())
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf(ctx, "cache lookup for %s failed: %v", key, err)
		}
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key for ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}
	return SetCacheEntry(s.db.WithContext(ctx), key, value, ttl, s.now())
}

// Cleanup deletes expired entries.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	n, err := CleanupCache(s.db.WithContext(ctx), s.now())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup failed: %w", err)
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&APICache{}).Count(&n).Error
	return n, err
}
