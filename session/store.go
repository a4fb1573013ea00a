package session

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohsenfayyazi/billder/database"
	"github.com/mohsenfayyazi/billder/models"
)

// Store is the client-held key/value storage. Keys are grouped by
// namespace: one per browser session or CLI profile.
type Store interface {
	Get(ctx context.Context, namespace string, keys ...string) (map[string]string, error)
	Set(ctx context.Context, namespace string, values map[string]string) error
	Delete(ctx context.Context, namespace string, keys ...string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the present subset of keys.
func (s *GormStore) Get(ctx context.Context, namespace string, keys ...string) (map[string]string, error) {
	var entries []models.StorageEntry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key IN ?", namespace, keys).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", namespace, err)
	}
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	return values, nil
}

// Set upserts all values in one transaction.
func (s *GormStore) Set(ctx context.Context, namespace string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	entries := make([]models.StorageEntry, 0, len(values))
	for k, v := range values {
		entries = append(entries, models.StorageEntry{Namespace: namespace, Key: k, Value: v})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entries).Error
	if err != nil {
		return fmt.Errorf("write session %s: %w", namespace, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, namespace string, keys ...string) error {
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key IN ?", namespace, keys).
		Delete(&models.StorageEntry{}).Error
	if err != nil {
		return fmt.Errorf("clear session %s: %w", namespace, err)
	}
	return nil
}

// Reset forgets every namespace. Subscribers are not notified.
func (s *GormStore) Reset(ctx context.Context) error {
	return database.ClearDBAndMigrate(s.db.WithContext(ctx))
}
