package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"cleanzone-api/apperrors"
)

// Store bundles the repositories that share one connection or transaction.
type Store struct {
	db *gorm.DB

	Users        *UserRepository
	Zones        *ZoneRepository
	Photos       *PhotoRepository
	Events       *EventRepository
	Messages     *MessageRepository
	Attendance   *AttendanceRepository
	StateChanges *StateChangeRepository
	Statistics   *StatisticsRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        NewUserRepository(db),
		Zones:        NewZoneRepository(db),
		Photos:       NewPhotoRepository(db),
		Events:       NewEventRepository(db),
		Messages:     NewMessageRepository(db),
		Attendance:   NewAttendanceRepository(db),
		StateChanges: NewStateChangeRepository(db),
		Statistics:   NewStatisticsRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// translateError maps driver errors onto the application taxonomy.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("%s not found", entity)
	}
	if isDuplicateKey(err) {
		return apperrors.Conflict("%s already exists", entity)
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err, "%s storage failure", entity)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
