package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dialogbot/internal/models"
)

type DialogRepository struct {
	db *sql.DB
}

func NewDialogRepository(db *sql.DB) *DialogRepository {
	return &DialogRepository{db: db}
}

func (r *DialogRepository) Create(ctx context.Context, dialog *models.Dialog) (*models.Dialog, error) {
	const query = `
INSERT INTO dialogs (user_id, model_type, role_type, history_limit)
VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, dialog.UserID, dialog.ModelType, dialog.RoleType, dialog.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("insert dialog: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("dialog last insert id: %w", err)
	}
	dialog.ID = id
	return dialog, nil
}

func (r *DialogRepository) GetByID(ctx context.Context, id int64) (*models.Dialog, error) {
	const query = `
SELECT id, user_id, model_type, role_type, history_limit, created_at, updated_at
FROM dialogs WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var d models.Dialog
	var limit sql.NullInt64
	if err := row.Scan(&d.ID, &d.UserID, &d.ModelType, &d.RoleType, &limit, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan dialog: %w", err)
	}
	if limit.Valid {
		v := int(limit.Int64)
		d.HistoryLimit = &v
	}
	return &d, nil
}

func (r *DialogRepository) Update(ctx context.Context, id int64, patch DialogPatch) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if patch.ModelType != nil {
		sets = append(sets, "model_type = ?")
		args = append(args, *patch.ModelType)
	}
	if patch.RoleType != nil {
		sets = append(sets, "role_type = ?")
		args = append(args, *patch.RoleType)
	}
	if patch.HistoryLimit != nil {
		sets = append(sets, "history_limit = ?")
		args = append(args, *patch.HistoryLimit)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := "UPDATE dialogs SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update dialog: %w", err)
	}
	return nil
}

func (r *DialogRepository) ListForUser(ctx context.Context, userID int64) ([]models.Dialog, error) {
	const query = `
SELECT id, user_id, model_type, role_type, history_limit, created_at, updated_at
FROM dialogs WHERE user_id = ?
ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}
	defer rows.Close()

	var dialogs []models.Dialog
	for rows.Next() {
		var d models.Dialog
		var limit sql.NullInt64
		if err := rows.Scan(&d.ID, &d.UserID, &d.ModelType, &d.RoleType, &limit, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dialog list: %w", err)
		}
		if limit.Valid {
			v := int(limit.Int64)
			d.HistoryLimit = &v
		}
		dialogs = append(dialogs, d)
	}
	return dialogs, rows.Err()
}
