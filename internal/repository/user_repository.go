package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dialogbot/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const query = `
SELECT id, telegram_id, COALESCE(username, ''), balance, created_at, updated_at
FROM users WHERE telegram_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, telegramID))
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `
SELECT id, telegram_id, COALESCE(username, ''), balance, created_at, updated_at
FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.Balance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (telegram_id, username, balance)
VALUES (?, NULLIF(?, ''), ?)`
	res, err := r.db.ExecContext(ctx, query, user.TelegramID, user.Username, user.Balance)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) Rename(ctx context.Context, id int64, username string) error {
	const query = `UPDATE users SET username = NULLIF(?, ''), updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, username, id); err != nil {
		return fmt.Errorf("rename user: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM users WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *UserRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
