package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"corebtc/core/types"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// EventRecord is one persisted registry event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Locker     string    `gorm:"size:42;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// Decoded returns the record as an engine event.
func (r EventRecord) Decoded() (*types.Event, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", r.ID, err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows an event query. Zero values match everything.
type Filter struct {
	Type          string
	Locker        string
	AfterSequence uint64
	Limit         int
}

// Store persists the registry audit trail through gorm.
type Store struct {
	db  *gorm.DB
	mu  sync.Mutex
	seq uint64
}

// Open connects to postgres for postgres:// DSNs and to sqlite otherwise.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("audit store: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit store: open: %w", err)
	}
	return New(db)
}

// New wraps an open gorm handle, migrating the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("audit store: nil database")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("audit store: migrate: %w", err)
	}
	var last EventRecord
	err := db.Order("sequence desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("audit store: load sequence: %w", err)
	}
	return &Store{db: db, seq: last.Sequence}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append persists evt and assigns it the next sequence number.
func (s *Store) Append(ctx context.Context, evt *types.Event, at time.Time) (*EventRecord, error) {
	if evt == nil {
		return nil, errors.New("audit store: nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, fmt.Errorf("audit store: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record := &EventRecord{
		ID:         uuid.New(),
		Sequence:   s.seq + 1,
		Type:       evt.Type,
		Locker:     evt.Attr("locker"),
		Attributes: string(attrs),
		CreatedAt:  at.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("audit store: insert: %w", err)
	}
	s.seq = record.Sequence
	return record, nil
}

// Query returns matching records in sequence order.
func (s *Store) Query(ctx context.Context, filter Filter) ([]EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	q := s.db.WithContext(ctx).Model(&EventRecord{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Locker != "" {
		q = q.Where("locker = ?", filter.Locker)
	}
	if filter.AfterSequence > 0 {
		q = q.Where("sequence > ?", filter.AfterSequence)
	}
	var out []EventRecord
	if err := q.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("audit store: query: %w", err)
	}
	return out, nil
}

// CountByType returns the number of stored events per type.
func (s *Store) CountByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Type  string
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&EventRecord{}).
		Select("type, count(*) as total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("audit store: count: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}

// LastSequence returns the sequence number of the newest record.
func (s *Store) LastSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
