package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"satvault/core/types"
	"satvault/crypto"
)

const maxQueryLimit = 1000

// Store persists indexed events through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// dialector picks the gorm driver for dsn. postgres:// and postgresql:// URLs
// use the postgres driver; sqlite://path or a bare path use sqlite.
func dialector(dsn string) (gorm.Dialector, error) {
	trimmed := strings.TrimSpace(dsn)
	switch {
	case trimmed == "":
		return nil, errors.New("indexer: dsn required")
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		return postgres.Open(trimmed), nil
	case strings.HasPrefix(trimmed, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(trimmed, "sqlite://")), nil
	default:
		return sqlite.Open(trimmed), nil
	}
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	dial, err := dialector(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save persists evt. Saving an already indexed event is a no-op.
func (s *Store) Save(ctx context.Context, evt types.Event) error {
	record, err := newRecord(evt, s.now())
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

// LastSequence returns the highest indexed sequence, or zero when empty.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	row := s.db.WithContext(ctx).Model(&EventRecord{}).Select("MAX(sequence)").Row()
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func toEvents(records []EventRecord) ([]types.Event, error) {
	out := make([]types.Event, 0, len(records))
	for _, record := range records {
		evt, err := record.event()
		if err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", record.Sequence, err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// VaultHistory returns up to limit events for the vault in commit order.
func (s *Store) VaultHistory(ctx context.Context, owner crypto.Address, id uint64, limit int) ([]types.Event, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("owner = ? AND vault_id = ?", owner.String(), id).
		Order("sequence ASC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toEvents(records)
}

// Recent returns up to limit of the newest events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.Event, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Order("sequence DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toEvents(records)
}
