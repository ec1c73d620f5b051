package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLength bounds transaction descriptions.
const MaxDescriptionLength = 1024

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Saldo is a named balance that transactions are applied against.
	// Amount is signed and always equals the sum of signed effects of the
	// transactions currently bound to the saldo.
	Saldo struct {
		ID          int64
		Name        string
		Amount      Money
		Description string
	}

	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		SaldoID     int64
		Amount      Money
		Description string
		Type        TransactionType
		CreatedAt   time.Time

		// CategoryName is filled on joined reads and used to build
		// training examples. It is not a column of the transaction row.
		CategoryName string
	}

	Category struct {
		ID          int64
		Name        string
		Type        TransactionType
		Description string
	}

	// PeriodSum is one row of an income/expense aggregate per period.
	PeriodSum struct {
		Period string
		Type   TransactionType
		Sum    Money
	}
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrEmptyDescription       = errors.New("empty description")
	ErrDescriptionTooLong     = errors.New("description too long")
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	ErrSaldoNotFound       = errors.New("saldo not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCategoryNotFound    = errors.New("category not found")

	ErrInsufficientBalance = errors.New("insufficient balance")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// SignedCents returns the effect of an amount of this type on a saldo:
// positive for income, negative for expense.
func (t TransactionType) SignedCents(m Money) int64 {
	if t == Expense {
		return -m.Cents
	}
	return m.Cents
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (tx Transaction) Validate() error {
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(tx.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(tx.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !tx.Type.Valid() {
		return ErrInvalidTransactionType
	}
	return nil
}
