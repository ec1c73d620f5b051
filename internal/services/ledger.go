package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"moneta/internal/core"
)

// LedgerService enforces the balance invariant across the transaction
// lifecycle: every committed create, update or delete leaves the bound
// saldo's amount equal to the signed sum of its active transactions, and
// an expense may never drive a saldo negative.
type LedgerService struct {
	saldos       SaldoRepo
	transactions TransactionRepo
	resolver     *CategoryResolver
	predictor    Predictor
	atomic       Atomic
	publisher    EventPublisher
	locks        *keyedMutex
	now          func() time.Time
}

// CreateTransactionInput carries the caller-supplied fields of a new
// transaction; the category is predicted and resolved internally.
type CreateTransactionInput struct {
	UserID      int64
	SaldoID     int64
	Amount      core.Money
	Type        core.TransactionType
	Description string
}

// TransactionPatch is a partial update; nil fields keep their prior
// values, including the type used for reversal and reapplication.
type TransactionPatch struct {
	SaldoID     *int64
	Amount      *core.Money
	Type        *core.TransactionType
	Description *string
}

// NewLedgerService wires the ledger. publisher may be nil; events are then
// skipped. The predictor may be nil only in tests that bypass creation.
func NewLedgerService(saldos SaldoRepo, transactions TransactionRepo, resolver *CategoryResolver, predictor Predictor, atomic Atomic, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		saldos:       saldos,
		transactions: transactions,
		resolver:     resolver,
		predictor:    predictor,
		atomic:       atomic,
		publisher:    publisher,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
}

// CreateTransaction predicts and resolves the category, then applies the
// transaction's effect to the saldo and writes both as one atomic unit.
// An expense that would drive the saldo negative is rejected with
// core.ErrInsufficientBalance and no state changes.
func (s *LedgerService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	tx := core.Transaction{
		UserID:      in.UserID,
		SaldoID:     in.SaldoID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	// Prediction and category resolution happen before the atomic unit:
	// resolve is idempotent under the (lower(name), type) unique key and
	// must not hold the write transaction open while the model runs.
	label := s.predictor.Predict(ctx, tx.Description, tx.Type)
	category, err := s.resolver.Resolve(ctx, label, tx.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.CategoryID = category.ID
	tx.CategoryName = category.Name
	tx.CreatedAt = s.now()

	unlock := s.locks.Lock(tx.SaldoID)
	defer unlock()

	var created core.Transaction
	err = s.atomic.WithinTx(ctx, func(ctx context.Context) error {
		saldo, err := s.saldos.FindByID(ctx, tx.SaldoID)
		if err != nil {
			return err
		}
		saldo.Amount.Cents += tx.Type.SignedCents(tx.Amount)
		if tx.Type == core.Expense && saldo.Amount.Cents < 0 {
			return core.ErrInsufficientBalance
		}
		if err := s.saldos.Save(ctx, saldo); err != nil {
			return fmt.Errorf("save saldo %d: %w", saldo.ID, err)
		}
		created, err = s.transactions.Create(ctx, tx)
		if err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, created.ID, "created")
	return created, nil
}

// UpdateTransaction reverts the old effect, applies the patched effect to
// the patched saldo (which may differ from the original) and re-validates
// the non-negative invariant when the resulting type is expense. All reads
// and writes form one atomic unit; a violation aborts with no writes.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (core.Transaction, error) {
	if err := validatePatch(patch); err != nil {
		return core.Transaction{}, err
	}

	// The old saldo id is needed to take the locks; it is re-read inside
	// the atomic unit, which is authoritative.
	current, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	targetSaldoID := current.SaldoID
	if patch.SaldoID != nil {
		targetSaldoID = *patch.SaldoID
	}

	unlock := s.locks.LockPair(current.SaldoID, targetSaldoID)
	defer unlock()

	var updated core.Transaction
	err = s.atomic.WithinTx(ctx, func(ctx context.Context) error {
		old, err := s.transactions.FindByID(ctx, id)
		if err != nil {
			return err
		}
		next := applyPatch(old, patch)
		if err := next.Validate(); err != nil {
			return err
		}

		source, err := s.saldos.FindByID(ctx, old.SaldoID)
		if err != nil {
			return err
		}
		// Revert the old effect using the old type, regardless of what
		// the patch changes.
		source.Amount.Cents -= old.Type.SignedCents(old.Amount)

		if next.SaldoID != old.SaldoID {
			target, err := s.saldos.FindByID(ctx, next.SaldoID)
			if err != nil {
				return err
			}
			target.Amount.Cents += next.Type.SignedCents(next.Amount)
			if next.Type == core.Expense && target.Amount.Cents < 0 {
				return core.ErrInsufficientBalance
			}
			if err := s.saldos.Save(ctx, source); err != nil {
				return fmt.Errorf("save saldo %d: %w", source.ID, err)
			}
			if err := s.saldos.Save(ctx, target); err != nil {
				return fmt.Errorf("save saldo %d: %w", target.ID, err)
			}
		} else {
			source.Amount.Cents += next.Type.SignedCents(next.Amount)
			if next.Type == core.Expense && source.Amount.Cents < 0 {
				return core.ErrInsufficientBalance
			}
			if err := s.saldos.Save(ctx, source); err != nil {
				return fmt.Errorf("save saldo %d: %w", source.ID, err)
			}
		}

		if err := s.transactions.Update(ctx, next); err != nil {
			return fmt.Errorf("update transaction %d: %w", id, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, id, "updated")
	return updated, nil
}

// DeleteTransaction reverts the transaction's effect on its saldo and
// removes the record as one atomic unit.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	current, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(current.SaldoID)
	defer unlock()

	err = s.atomic.WithinTx(ctx, func(ctx context.Context) error {
		tx, err := s.transactions.FindByID(ctx, id)
		if err != nil {
			return err
		}
		saldo, err := s.saldos.FindByID(ctx, tx.SaldoID)
		if err != nil {
			return err
		}
		saldo.Amount.Cents -= tx.Type.SignedCents(tx.Amount)
		if err := s.saldos.Save(ctx, saldo); err != nil {
			return fmt.Errorf("save saldo %d: %w", saldo.ID, err)
		}
		if err := s.transactions.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, id, "deleted")
	return nil
}

func (s *LedgerService) publish(ctx context.Context, txID int64, action string) {
	if s.publisher == nil {
		return
	}
	// The ledger write already committed; a lost event only delays the
	// next retraining run.
	if err := s.publisher.PublishTransactionChanged(ctx, txID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", txID, "action", action, "error", err)
	}
}

func validatePatch(patch TransactionPatch) error {
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return err
		}
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return core.ErrInvalidTransactionType
	}
	if patch.Description != nil {
		if len(strings.TrimSpace(*patch.Description)) == 0 {
			return core.ErrEmptyDescription
		}
		if len(*patch.Description) > core.MaxDescriptionLength {
			return core.ErrDescriptionTooLong
		}
	}
	return nil
}

func applyPatch(tx core.Transaction, patch TransactionPatch) core.Transaction {
	if patch.SaldoID != nil {
		tx.SaldoID = *patch.SaldoID
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.Description != nil {
		tx.Description = strings.TrimSpace(*patch.Description)
	}
	return tx
}
