// Package repository stores imported transactions in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transaction is a stored statement line. Amounts are kept in minor units
// with the sign carried by Direction.
type Transaction struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	PostedOn     time.Time
	Description  string
	AmountMinor  int64
	CurrencyCode string
	Direction    string // "income" or "expense"
	Category     string
	CreatedAt    time.Time
}

// PostgresRepository implements transaction persistence on PostgreSQL.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a repository over a pool or transaction.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one transaction and returns its generated id.
func (r *PostgresRepository) Create(ctx context.Context, tx *Transaction) (uuid.UUID, error) {
	query := `
		INSERT INTO transactions (owner_id, posted_on, description, amount_minor, currency_code, direction, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		tx.OwnerID,
		tx.PostedOn,
		tx.Description,
		tx.AmountMinor,
		tx.CurrencyCode,
		tx.Direction,
		tx.Category,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx.ID, nil
}

// ListByOwner returns an owner's transactions, most recent first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Transaction, error) {
	query := `
		SELECT id, owner_id, posted_on, description, amount_minor, currency_code, direction, category, created_at
		FROM transactions
		WHERE owner_id = $1
		ORDER BY posted_on DESC, created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.OwnerID, &t.PostedOn, &t.Description,
			&t.AmountMinor, &t.CurrencyCode, &t.Direction, &t.Category, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// DeleteByOwner removes every transaction of an owner and reports how many went.
func (r *PostgresRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}
