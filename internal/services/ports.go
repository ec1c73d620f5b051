// Package services contains the application core: the balance ledger, the
// category resolver, the classifier service and the evaluation engine,
// all talking to storage through narrow ports.
package services

import (
	"context"
	"time"

	"moneta/internal/core"
)

// TransactionRepo is the transaction persistence port. Reads return
// transactions with CategoryName joined in; FindPage is ordered by id so
// paging and evaluation splits are deterministic.
type TransactionRepo interface {
	FindPage(ctx context.Context, skip, limit int) ([]core.Transaction, error)
	FindByID(ctx context.Context, id int64) (core.Transaction, error)
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id int64) error
	CountAll(ctx context.Context) (int64, error)
	SumByPeriod(ctx context.Context, from, to time.Time) ([]core.PeriodSum, error)
}

type SaldoRepo interface {
	FindByID(ctx context.Context, id int64) (core.Saldo, error)
	Save(ctx context.Context, s core.Saldo) error
}

type CategoryRepo interface {
	// FindByNameAndType matches name case-insensitively and type exactly.
	// The name is treated as literal text, never as a pattern.
	FindByNameAndType(ctx context.Context, name string, t core.TransactionType) (core.Category, error)
	Create(ctx context.Context, c core.Category) (core.Category, error)
}

// Atomic runs fn as one atomic unit: every repo call made with the ctx fn
// receives either all commits or none of it does.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher notifies interested consumers (the retrain worker) that
// ledger state changed. Implementations must be safe to call concurrently.
type EventPublisher interface {
	PublishTransactionChanged(ctx context.Context, txID int64, action string) error
}

// Predictor is the slice of the classifier service the ledger needs.
type Predictor interface {
	Predict(ctx context.Context, description string, t core.TransactionType) string
}
