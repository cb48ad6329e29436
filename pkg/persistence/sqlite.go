package persistence

import (
	"context"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
)

// recordRow is the gorm model backing every collection in one table
type recordRow struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	Value      []byte
}

// TableName sets the storage table name
func (recordRow) TableName() string { return "neuromem_records" }

// SQLiteStore is a SQLite-backed store hosting any number of named
// collections in a single database file
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and migrates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewStorageErrorWithCause("failed to open sqlite database", err)
	}
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, errors.NewStorageErrorWithCause("failed to migrate sqlite schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Collection returns a named collection within the store
func (s *SQLiteStore) Collection(name string) interfaces.Collection {
	return &SQLiteCollection{store: s, name: name}
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLiteCollection is one named collection inside a SQLiteStore
type SQLiteCollection struct {
	store *SQLiteStore
	name  string
}

// GetAll returns every record in the collection
func (c *SQLiteCollection) GetAll(ctx context.Context) (map[string][]byte, error) {
	var rows []recordRow
	result := c.store.db.WithContext(ctx).Where("collection = ?", c.name).Find(&rows)
	if result.Error != nil {
		return nil, errors.NewStorageErrorWithCause("failed to load collection", result.Error)
	}

	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Value
	}
	return out, nil
}

// Put writes one record, replacing any existing value
func (c *SQLiteCollection) Put(ctx context.Context, id string, value []byte) error {
	row := recordRow{Collection: c.name, ID: id, Value: value}
	result := c.store.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row)
	if result.Error != nil {
		return errors.NewStorageErrorWithCause("failed to write record", result.Error)
	}
	return nil
}

// Delete removes one record; missing ids are not an error
func (c *SQLiteCollection) Delete(ctx context.Context, id string) error {
	result := c.store.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.name, id).
		Delete(&recordRow{})
	if result.Error != nil {
		return errors.NewStorageErrorWithCause("failed to delete record", result.Error)
	}
	return nil
}

// Clear removes every record in the collection
func (c *SQLiteCollection) Clear(ctx context.Context) error {
	result := c.store.db.WithContext(ctx).
		Where("collection = ?", c.name).
		Delete(&recordRow{})
	if result.Error != nil {
		return errors.NewStorageErrorWithCause("failed to clear collection", result.Error)
	}
	return nil
}

// Size returns the total serialized size of the collection in bytes
func (c *SQLiteCollection) Size(ctx context.Context) (int64, error) {
	var size int64
	result := c.store.db.WithContext(ctx).
		Model(&recordRow{}).
		Where("collection = ?", c.name).
		Select("COALESCE(SUM(LENGTH(value) + LENGTH(id)), 0)").
		Scan(&size)
	if result.Error != nil {
		return 0, errors.NewStorageErrorWithCause("failed to measure collection", result.Error)
	}
	return size, nil
}

// Close is a no-op; the SQLiteStore owns the connection
func (c *SQLiteCollection) Close() error {
	return nil
}

var _ interfaces.Collection = (*SQLiteCollection)(nil)
