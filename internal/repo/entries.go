package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourname/habit-bot/internal/domain"
)

type Entries struct{ pool *pgxpool.Pool }

func NewEntries(p *pgxpool.Pool) *Entries { return &Entries{pool: p} }

// Postgres is the production Store.
type Postgres struct {
	*Users
	*Entries
}

func NewPostgres(p *pgxpool.Pool) *Postgres {
	return &Postgres{Users: NewUsers(p), Entries: NewEntries(p)}
}

const entryColumns = `id, user_id, date_of_entry, bedtime_before_midnight,
	no_gadgets_after_23, followed_diet, sport_hours, created_at`

func (r *Entries) InsertEntry(ctx context.Context, e domain.DailyEntry) (domain.DailyEntry, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO daily_entries(user_id, date_of_entry, bedtime_before_midnight,
			no_gadgets_after_23, followed_diet, sport_hours)
		VALUES($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, e.UserID, e.Date.Format(domain.DateLayout), e.BedtimeBeforeMidnight,
		e.NoGadgetsAfter23, e.FollowedDiet, e.SportHours).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return domain.DailyEntry{}, fmt.Errorf("failed to insert entry: %w", err)
	}
	return e, nil
}

func (r *Entries) QueryEntries(ctx context.Context, userID int64, from, to time.Time) ([]domain.DailyEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE user_id=$1 AND date_of_entry BETWEEN $2::date AND $3::date
		ORDER BY date_of_entry, id
	`, userID, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
}

func (r *Entries) ListEntries(ctx context.Context, userID int64) ([]domain.DailyEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+`
		FROM daily_entries
		WHERE user_id=$1
		ORDER BY date_of_entry, id
	`, userID)
}

func (r *Entries) query(ctx context.Context, sql string, args ...any) ([]domain.DailyEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyEntry
	for rows.Next() {
		var e domain.DailyEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.BedtimeBeforeMidnight,
			&e.NoGadgetsAfter23, &e.FollowedDiet, &e.SportHours, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return out, nil
}
