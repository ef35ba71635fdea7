package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dialogbot/internal/models"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) AppendText(ctx context.Context, msg *models.DialogMessage) (*models.DialogMessage, error) {
	const query = `
INSERT INTO dialog_messages (dialog_id, user_id, role, body)
VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, msg.DialogID, msg.UserID, msg.Role, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message last insert id: %w", err)
	}
	msg.ID = id
	return msg, nil
}

func (r *MessageRepository) ListForDialog(ctx context.Context, dialogID int64) ([]models.DialogMessage, error) {
	const query = `
SELECT id, dialog_id, user_id, role, body, created_at
FROM dialog_messages WHERE dialog_id = ?
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, dialogID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.DialogMessage
	for rows.Next() {
		var m models.DialogMessage
		if err := rows.Scan(&m.ID, &m.DialogID, &m.UserID, &m.Role, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) CreateImage(ctx context.Context, msg *models.ImageMessage) (*models.ImageMessage, error) {
	const query = `
INSERT INTO image_messages (dialog_id, user_id, prompt, image_url)
VALUES (?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, msg.DialogID, msg.UserID, msg.Prompt, msg.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("insert image message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("image message last insert id: %w", err)
	}
	msg.ID = id
	return msg, nil
}

func (r *MessageRepository) ListImagesForDialog(ctx context.Context, dialogID int64) ([]models.ImageMessage, error) {
	const query = `
SELECT id, dialog_id, user_id, prompt, COALESCE(image_url, ''), created_at
FROM image_messages WHERE dialog_id = ?
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, dialogID)
	if err != nil {
		return nil, fmt.Errorf("list image messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ImageMessage
	for rows.Next() {
		var m models.ImageMessage
		if err := rows.Scan(&m.ID, &m.DialogID, &m.UserID, &m.Prompt, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) CountGenerationsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	const textQuery = `
SELECT COUNT(*) FROM dialog_messages
WHERE user_id = ? AND role = ? AND created_at >= ?`
	var textCount int
	row := r.db.QueryRowContext(ctx, textQuery, userID, models.MessageRoleAssistant, since)
	if err := row.Scan(&textCount); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count assistant messages: %w", err)
	}

	const imageQuery = `
SELECT COUNT(*) FROM image_messages
WHERE user_id = ? AND image_url IS NOT NULL AND created_at >= ?`
	var imageCount int
	row = r.db.QueryRowContext(ctx, imageQuery, userID, since)
	if err := row.Scan(&imageCount); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count image messages: %w", err)
	}

	return textCount + imageCount, nil
}
