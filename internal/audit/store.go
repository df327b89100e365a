package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Recorder stores and lists audit entries.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, action Action, limit int) ([]Entry, error)
	Enabled() bool
}

// Store is a Recorder backed by gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore wraps db.
func NewStore(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Store{db: db, logger: logger}, nil
}

// Record inserts e and fills its ID and CreatedAt.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("entry cannot be nil")
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to record %s entry: %w", e.Action, err)
	}
	s.logger.Debug("audit entry recorded", "id", e.ID, "action", string(e.Action), "outcome", e.Outcome)
	return nil
}

// Recent returns the newest entries of action, newest first. An empty
// action lists every entry.
func (s *Store) Recent(ctx context.Context, action Action, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if action != "" {
		q = q.Where("action = ?", action)
	}

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("audit entries pruned", "count", res.RowsAffected, "before", cutoff)
	}
	return res.RowsAffected, nil
}

// Enabled implements Recorder.
func (s *Store) Enabled() bool { return true }

// Nop discards entries. It is used when no database is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, *Entry) error { return nil }

// Recent implements Recorder.
func (Nop) Recent(context.Context, Action, int) ([]Entry, error) { return nil, nil }

// Enabled implements Recorder.
func (Nop) Enabled() bool { return false }

var (
	_ Recorder = (*Store)(nil)
	_ Recorder = Nop{}
)

// Open returns a Store for dsn, or Nop when dsn is empty. The returned
// close function is never nil.
func Open(dsn string, logger *slog.Logger) (Recorder, func() error, error) {
	if dsn == "" {
		logger.Info("audit log disabled")
		return Nop{}, func() error { return nil }, nil
	}

	db, err := NewDB(&DBConfig{Logger: logger, DSN: dsn})
	if err != nil {
		return nil, nil, err
	}

	store, err := NewStore(db, logger)
	if err != nil {
		_ = CloseDB(db, logger)
		return nil, nil, err
	}
	return store, func() error { return CloseDB(db, logger) }, nil
}
