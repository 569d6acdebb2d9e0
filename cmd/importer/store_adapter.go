package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	importservice "github.com/FACorreiaa/statement-import/internal/domain/import/service"
	"github.com/FACorreiaa/statement-import/internal/domain/transactions/repository"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

// transactionRepository is the part of the Postgres repository the adapter needs.
type transactionRepository interface {
	Create(ctx context.Context, tx *repository.Transaction) (uuid.UUID, error)
}

// transactionStoreAdapter adapts the Postgres repository to the import
// service's TransactionStore interface.
type transactionStoreAdapter struct {
	repo transactionRepository
}

func newTransactionStoreAdapter(repo transactionRepository) importservice.TransactionStore {
	return &transactionStoreAdapter{repo: repo}
}

// CreateTransaction implements importservice.TransactionStore
func (a *transactionStoreAdapter) CreateTransaction(ctx context.Context, ownerID uuid.UUID, rec importservice.Record) (uuid.UUID, error) {
	posted, err := time.Parse("2006-01-02", rec.Date)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid date %q: %w", rec.Date, err)
	}

	return a.repo.Create(ctx, &repository.Transaction{
		OwnerID:      ownerID,
		PostedOn:     posted,
		Description:  rec.Description,
		AmountMinor:  money.NewFromDecimal(rec.Amount, rec.Currency).Amount(),
		CurrencyCode: rec.Currency,
		Direction:    string(rec.Direction),
		Category:     rec.Category,
	})
}
