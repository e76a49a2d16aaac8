package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// KVEntry is one row of the relational key-value table.
type KVEntry struct {
	Name  string `gorm:"primaryKey;size:191"`
	Value []byte `gorm:"not null"`

	UpdatedTime time.Time `gorm:"autoUpdateTime"`
	CreatedTime time.Time `gorm:"autoCreateTime"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// SQL stores keys in a single gorm-managed table. CompareAndSwap relies on
// conditional UPDATE/INSERT so it stays atomic across processes.
type SQL struct {
	db *gorm.DB
}

// OpenSQL connects with the given driver ("postgres" or "mysql") and migrates the table.
func OpenSQL(driver, dsn string) (*SQL, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQL(db)
}

// NewSQL wraps an existing connection.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var entry KVEntry
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	entry := KVEntry{Name: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_time"}),
	}).Create(&entry).Error
}

func (s *SQL) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&KVEntry{}).Where("name = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("name = ?", key).Delete(&KVEntry{}).Error
}

func (s *SQL) CompareAndSwap(ctx context.Context, key string, old, next []byte) error {
	db := s.db.WithContext(ctx)

	if old == nil {
		entry := KVEntry{Name: key, Value: next}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	}

	res := db.Model(&KVEntry{}).
		Where("name = ? AND value = ?", key, old).
		Updates(map[string]interface{}{"value": next, "updated_time": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQL) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	var entries []KVEntry
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", escapeLike(prefix)+"%").
		Order("name ASC").
		Find(&entries).Error
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e.Name, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
