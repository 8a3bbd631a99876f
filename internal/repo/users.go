package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourname/habit-bot/internal/domain"
)

type Users struct{ pool *pgxpool.Pool }

func NewUsers(p *pgxpool.Pool) *Users { return &Users{pool: p} }

// InsertUser registers a user once; later calls for the same telegram id
// change nothing.
func (r *Users) InsertUser(ctx context.Context, u domain.User) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO users(telegram_id, username)
		VALUES($1,$2)
		ON CONFLICT (telegram_id) DO NOTHING
	`, u.TelegramID, u.Username)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Users) FindUserByID(ctx context.Context, telegramID int64) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT telegram_id, username, created_at FROM users WHERE telegram_id=$1
	`, telegramID).Scan(&u.TelegramID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *Users) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT telegram_id, username, created_at FROM users ORDER BY telegram_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.TelegramID, &u.Username, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
