package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ownerID := uuid.New()
	id := uuid.New()
	now := time.Now()
	posted := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(ownerID, posted, "SUPERMERCADO BOM PRECO", int64(4590), "BRL", "expense", "Food").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))

	repo := NewPostgresRepository(mock)
	tx := &Transaction{
		OwnerID:      ownerID,
		PostedOn:     posted,
		Description:  "SUPERMERCADO BOM PRECO",
		AmountMinor:  4590,
		CurrencyCode: "BRL",
		Direction:    "expense",
		Category:     "Food",
	}

	got, err := repo.Create(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, id, tx.ID)
	assert.Equal(t, now, tx.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnError(errors.New("value too long"))

	_, err = NewPostgresRepository(mock).Create(context.Background(), &Transaction{OwnerID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ownerID := uuid.New()
	now := time.Now()
	columns := []string{"id", "owner_id", "posted_on", "description", "amount_minor", "currency_code", "direction", "category", "created_at"}

	mock.ExpectQuery(`SELECT (.+) FROM transactions`).
		WithArgs(ownerID).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(uuid.New(), ownerID, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "SALARIO EMPRESA X", int64(350000), "BRL", "income", "Salary", now).
			AddRow(uuid.New(), ownerID, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), "NETFLIX.COM", int64(3990), "BRL", "expense", "Leisure", now))

	txs, err := NewPostgresRepository(mock).ListByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "SALARIO EMPRESA X", txs[0].Description)
	assert.Equal(t, int64(3990), txs[1].AmountMinor)
	assert.Equal(t, "Leisure", txs[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ownerID := uuid.New()
	mock.ExpectExec(`DELETE FROM transactions WHERE owner_id = \$1`).
		WithArgs(ownerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewPostgresRepository(mock).DeleteByOwner(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
