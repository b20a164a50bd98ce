package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is the relational row backing SQLStore. Values must be valid JSON.
type Record struct {
	Key       string         `gorm:"column:entry_key;primaryKey;size:512"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table used by SQLStore.
func (Record) TableName() string {
	return "kv_entries"
}

// SQLStore implements Store on a single gorm table. Works with postgres and sqlite.
type SQLStore struct {
	db        *gorm.DB
	namespace string
}

// NewSQLStore migrates the kv_entries table and returns the store.
func NewSQLStore(db *gorm.DB, namespace string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db must not be nil")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &SQLStore{db: db, namespace: strings.TrimSpace(namespace)}, nil
}

func (s *SQLStore) key(key Key) string {
	return encodeKey(s.namespace, key)
}

func (s *SQLStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var record Record
	// a miss is a normal outcome here (dangling index entries), keep it out of the gorm log
	err := s.db.Session(&gorm.Session{Logger: s.db.Logger.LogMode(logger.Silent)}).WithContext(ctx).Where("entry_key = ?", s.key(key)).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(record.Value), nil
}

func (s *SQLStore) Set(ctx context.Context, key Key, value []byte) error {
	if err := s.upsert(s.db.WithContext(ctx), key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key Key) error {
	if err := s.delete(s.db.WithContext(ctx), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, prefix Key) ([]Entry, error) {
	encodedPrefix := encodePrefix(s.namespace, prefix)

	var records []Record
	err := s.db.WithContext(ctx).
		Where(`entry_key LIKE ? ESCAPE '\'`, escapeLike(encodedPrefix)+"%").
		Order("entry_key ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		// sqlite LIKE is case-insensitive for ASCII
		if !strings.HasPrefix(record.Key, encodedPrefix) {
			continue
		}
		entries = append(entries, Entry{Key: decodeKey(s.namespace, record.Key), Value: []byte(record.Value)})
	}

	return entries, nil
}

func (s *SQLStore) Commit(ctx context.Context, batch *Batch) error {
	ops := batch.Ops()
	if len(ops) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				if err := s.upsert(tx, op.Key, op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := s.delete(tx, op.Key); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown batch operation %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d operations: %w", len(ops), err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) upsert(tx *gorm.DB, key Key, value []byte) error {
	record := Record{Key: s.key(key), Value: datatypes.JSON(value), UpdatedAt: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
}

func (s *SQLStore) delete(tx *gorm.DB, key Key) error {
	return tx.Where("entry_key = ?", s.key(key)).Delete(&Record{}).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
