package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feedforge/activitylog/internal/adapters/sqlite/gormdb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type renderCacheModel struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (renderCacheModel) TableName() string {
	return "render_cache"
}

// RenderCacheStore is the durable render cache. Expiry is lazy on Get; the
// cache sweeper reclaims expired rows in the background via PurgeExpired.
type RenderCacheStore struct {
	db  *gormdb.DB
	now func() time.Time
}

func NewRenderCacheStore(db *gormdb.DB) *RenderCacheStore {
	return &RenderCacheStore{db: db, now: time.Now}
}

func (s *RenderCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model renderCacheModel
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("key = ?", key).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get cache entry: %w", err)
	}
	if !model.ExpiresAt.After(s.now().UTC()) {
		return "", false, nil
	}
	return model.Value, true, nil
}

func (s *RenderCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	model := renderCacheModel{
		Key:       key,
		Value:     value,
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *RenderCacheStore) Delete(ctx context.Context, key string) error {
	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("key = ?", key).Delete(&renderCacheModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *RenderCacheStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		res := tx.Where("key >= ? AND key < ?", prefix, prefix+"\uffff").Delete(&renderCacheModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete cache prefix: %w", err)
	}
	return deleted, nil
}

func (s *RenderCacheStore) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		res := tx.Where("expires_at <= ?", s.now().UTC()).Delete(&renderCacheModel{})
		if res.Error != nil {
			return res.Error
		}
		purged = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired cache entries: %w", err)
	}
	return purged, nil
}
