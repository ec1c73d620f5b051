package storage

import (
	"context"
	"time"

	"moneta/internal/core"
)

// The services layer consumes one narrow port per aggregate. These views
// expose the shared repository under each port's method set while keeping
// a single connection pool and one WithinTx implementation.

type TransactionStore struct{ r *SQLiteRepository }
type SaldoStore struct{ r *SQLiteRepository }
type CategoryStore struct{ r *SQLiteRepository }

func (r *SQLiteRepository) Transactions() *TransactionStore { return &TransactionStore{r} }
func (r *SQLiteRepository) Saldos() *SaldoStore             { return &SaldoStore{r} }
func (r *SQLiteRepository) Categories() *CategoryStore      { return &CategoryStore{r} }

func (s *TransactionStore) FindPage(ctx context.Context, skip, limit int) ([]core.Transaction, error) {
	return s.r.FindPage(ctx, skip, limit)
}

func (s *TransactionStore) FindByID(ctx context.Context, id int64) (core.Transaction, error) {
	return s.r.FindTransactionByID(ctx, id)
}

func (s *TransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return s.r.CreateTransaction(ctx, tx)
}

func (s *TransactionStore) Update(ctx context.Context, tx core.Transaction) error {
	return s.r.UpdateTransaction(ctx, tx)
}

func (s *TransactionStore) Delete(ctx context.Context, id int64) error {
	return s.r.DeleteTransaction(ctx, id)
}

func (s *TransactionStore) CountAll(ctx context.Context) (int64, error) {
	return s.r.CountAll(ctx)
}

func (s *TransactionStore) SumByPeriod(ctx context.Context, from, to time.Time) ([]core.PeriodSum, error) {
	return s.r.SumByPeriod(ctx, from, to)
}

func (s *SaldoStore) FindByID(ctx context.Context, id int64) (core.Saldo, error) {
	return s.r.FindByID(ctx, id)
}

func (s *SaldoStore) Save(ctx context.Context, saldo core.Saldo) error {
	return s.r.Save(ctx, saldo)
}

func (s *SaldoStore) Create(ctx context.Context, saldo core.Saldo) (core.Saldo, error) {
	return s.r.CreateSaldo(ctx, saldo)
}

func (s *CategoryStore) FindByNameAndType(ctx context.Context, name string, t core.TransactionType) (core.Category, error) {
	return s.r.FindByNameAndType(ctx, name, t)
}

func (s *CategoryStore) Create(ctx context.Context, c core.Category) (core.Category, error) {
	return s.r.Create(ctx, c)
}
