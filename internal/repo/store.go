package repo

import (
	"context"
	"errors"
	"time"

	"github.com/yourname/habit-bot/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

// Store is the Entry Store: users plus their daily entries. Postgres and
// SQLite both implement it.
type Store interface {
	InsertUser(ctx context.Context, u domain.User) (created bool, err error)
	FindUserByID(ctx context.Context, telegramID int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	InsertEntry(ctx context.Context, e domain.DailyEntry) (domain.DailyEntry, error)
	// QueryEntries returns entries whose date lies in [from, to], both
	// inclusive, compared as calendar dates.
	QueryEntries(ctx context.Context, userID int64, from, to time.Time) ([]domain.DailyEntry, error)
	ListEntries(ctx context.Context, userID int64) ([]domain.DailyEntry, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
