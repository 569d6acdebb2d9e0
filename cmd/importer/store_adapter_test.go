package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/statement-import/internal/domain/import/service"
	"github.com/FACorreiaa/statement-import/internal/domain/transactions/repository"
)

type captureRepo struct {
	got *repository.Transaction
}

func (c *captureRepo) Create(_ context.Context, tx *repository.Transaction) (uuid.UUID, error) {
	c.got = tx
	return uuid.New(), nil
}

func TestTransactionStoreAdapter(t *testing.T) {
	owner := uuid.New()

	t.Run("converts record", func(t *testing.T) {
		repo := &captureRepo{}
		store := newTransactionStoreAdapter(repo)

		id, err := store.CreateTransaction(context.Background(), owner, importservice.Record{
			Date:        "2024-03-05",
			Description: "Supermercado Extra",
			Amount:      decimal.RequireFromString("45.30"),
			Direction:   parser.Expense,
			Category:    "Food",
			Currency:    "BRL",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		require.NotNil(t, repo.got)
		assert.Equal(t, owner, repo.got.OwnerID)
		assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), repo.got.PostedOn)
		assert.Equal(t, int64(4530), repo.got.AmountMinor)
		assert.Equal(t, "expense", repo.got.Direction)
		assert.Equal(t, "BRL", repo.got.CurrencyCode)
	})

	t.Run("rejects bad date", func(t *testing.T) {
		repo := &captureRepo{}
		store := newTransactionStoreAdapter(repo)

		_, err := store.CreateTransaction(context.Background(), owner, importservice.Record{Date: "05/03/2024"})
		assert.Error(t, err)
		assert.Nil(t, repo.got)
	})
}
