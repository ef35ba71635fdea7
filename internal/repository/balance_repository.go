package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dialogbot/internal/models"
)

// BalanceRepository keeps users.balance and the transactions log consistent:
// every mutation runs the balance update and the ledger insert in one SQL
// transaction.
type BalanceRepository struct {
	db *sql.DB
}

func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) Balance(ctx context.Context, userID int64) (int64, bool, error) {
	const query = `SELECT balance FROM users WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("scan balance: %w", err)
	}
	return balance, true, nil
}

func (r *BalanceRepository) Deposit(ctx context.Context, userID, amount int64) (int64, bool, error) {
	return r.apply(ctx, userID, amount, models.TransactionDeposit)
}

func (r *BalanceRepository) Withdraw(ctx context.Context, userID, amount int64) (int64, bool, error) {
	return r.apply(ctx, userID, -amount, models.TransactionWithdrawal)
}

// apply performs the atomic read-modify-write. delta is signed; withdrawals
// carry a guard so the balance can never go below zero.
func (r *BalanceRepository) apply(ctx context.Context, userID, delta int64, kind models.TransactionKind) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	row := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ? FOR UPDATE`, userID)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lock user balance: %w", err)
	}

	newBalance := balance + delta
	if newBalance < 0 {
		return balance, false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = ?, updated_at = NOW() WHERE id = ?`, newBalance, userID); err != nil {
		return 0, false, fmt.Errorf("update balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, amount, kind) VALUES (?, ?, ?)`, userID, delta, kind); err != nil {
		return 0, false, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit balance tx: %w", err)
	}
	return newBalance, true, nil
}

func (r *BalanceRepository) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	const query = `
SELECT id, user_id, amount, kind, created_at
FROM transactions WHERE user_id = ?
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *BalanceRepository) SumTransactions(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}
