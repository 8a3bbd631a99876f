package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yourname/habit-bot/internal/domain"
)

// SQLite is a single-file Store for local runs and tests. Dates are kept as
// ISO text so range filters compare lexicographically.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

func (s *SQLite) InsertUser(ctx context.Context, u domain.User) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(telegram_id, username, created_at)
		VALUES(?,?,?)
		ON CONFLICT (telegram_id) DO NOTHING
	`, u.TelegramID, u.Username, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) FindUserByID(ctx context.Context, telegramID int64) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, created_at FROM users WHERE telegram_id=?
	`, telegramID)
	u, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, username, created_at FROM users ORDER BY telegram_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertEntry(ctx context.Context, e domain.DailyEntry) (domain.DailyEntry, error) {
	e.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_entries(user_id, date_of_entry, bedtime_before_midnight,
			no_gadgets_after_23, followed_diet, sport_hours, created_at)
		VALUES(?,?,?,?,?,?,?)
	`, e.UserID, e.Date.Format(domain.DateLayout), e.BedtimeBeforeMidnight,
		e.NoGadgetsAfter23, e.FollowedDiet, e.SportHours, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.DailyEntry{}, fmt.Errorf("failed to insert entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return domain.DailyEntry{}, fmt.Errorf("failed to insert entry: %w", err)
	}
	e.Date = domain.Day(e.Date)
	return e, nil
}

func (s *SQLite) QueryEntries(ctx context.Context, userID int64, from, to time.Time) ([]domain.DailyEntry, error) {
	return s.query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE user_id=? AND date_of_entry BETWEEN ? AND ?
		ORDER BY date_of_entry, id
	`, userID, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
}

func (s *SQLite) ListEntries(ctx context.Context, userID int64) ([]domain.DailyEntry, error) {
	return s.query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE user_id=?
		ORDER BY date_of_entry, id
	`, userID)
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]domain.DailyEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyEntry
	for rows.Next() {
		var (
			e               domain.DailyEntry
			date, createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &date, &e.BedtimeBeforeMidnight,
			&e.NoGadgetsAfter23, &e.FollowedDiet, &e.SportHours, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("bad entry date %q: %w", date, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("bad entry timestamp %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(r rowScanner) (domain.User, error) {
	var (
		u         domain.User
		username  sql.NullString
		createdAt string
	)
	if err := r.Scan(&u.TelegramID, &username, &createdAt); err != nil {
		return domain.User{}, err
	}
	if username.Valid {
		u.Username = &username.String
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("bad user timestamp %q: %w", createdAt, err)
	}
	u.CreatedAt = t
	return u, nil
}
