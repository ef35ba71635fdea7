package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dialogbot/internal/models"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	const query = `
SELECT id, user_id, plan, start_date, end_date, max_requests, COALESCE(features, '[]'), created_at
FROM subscriptions WHERE user_id = ?
ORDER BY id DESC
LIMIT 1`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Replace deletes any subscription rows for the user and inserts the new one
// inside a single transaction, so "at most one row per user" holds even
// across concurrent plan changes.
func (r *SubscriptionRepository) Replace(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	features, err := json.Marshal(sub.Features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = ?`, sub.UserID); err != nil {
		return nil, fmt.Errorf("delete old subscription: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, plan, start_date, end_date, max_requests, features)
VALUES (?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.Plan, sub.StartDate, sub.EndDate, sub.MaxRequests, string(features))
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("subscription last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit subscription tx: %w", err)
	}
	sub.ID = id
	return sub, nil
}

func (r *SubscriptionRepository) UpdateDates(ctx context.Context, id int64, start, end time.Time) error {
	const query = `UPDATE subscriptions SET start_date = ?, end_date = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, start, end, id); err != nil {
		return fmt.Errorf("update subscription dates: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) DeleteByUser(ctx context.Context, userID int64) (bool, error) {
	const query = `DELETE FROM subscriptions WHERE user_id = ?`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("subscription rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *SubscriptionRepository) ListForUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const query = `
SELECT id, user_id, plan, start_date, end_date, max_requests, COALESCE(features, '[]'), created_at
FROM subscriptions WHERE user_id = ?
ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var s models.Subscription
		var maxRequests sql.NullInt64
		var features string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Plan, &s.StartDate, &s.EndDate, &maxRequests, &features, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription list: %w", err)
		}
		if maxRequests.Valid {
			v := int(maxRequests.Int64)
			s.MaxRequests = &v
		}
		if err := json.Unmarshal([]byte(features), &s.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func scanSubscription(row *sql.Row) (*models.Subscription, error) {
	var s models.Subscription
	var maxRequests sql.NullInt64
	var features string
	if err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.StartDate, &s.EndDate, &maxRequests, &features, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if maxRequests.Valid {
		v := int(maxRequests.Int64)
		s.MaxRequests = &v
	}
	if err := json.Unmarshal([]byte(features), &s.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return &s, nil
}
