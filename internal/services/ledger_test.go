package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"moneta/internal/core"
)

func newTestLedger(store *memStore) (*LedgerService, *recordingPublisher) {
	publisher := &recordingPublisher{}
	resolver := NewCategoryResolver(store)
	ledger := NewLedgerService(store, store.transactions(), resolver, fixedPredictor{label: "groceries"}, store, publisher)
	return ledger, publisher
}

func TestCreateTransaction_InsufficientBalance(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	ledger, _ := newTestLedger(store)

	_, err := ledger.CreateTransaction(context.Background(), CreateTransactionInput{
		SaldoID:     wallet.ID,
		Amount:      core.Money{Cents: 150_00},
		Type:        core.Expense,
		Description: "new laptop",
	})
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	saldo, _ := store.FindByID(context.Background(), wallet.ID)
	if saldo.Amount.Cents != 100_00 {
		t.Errorf("saldo amount changed to %d, want unchanged 10000", saldo.Amount.Cents)
	}
	count, _ := store.transactions().CountAll(context.Background())
	if count != 0 {
		t.Errorf("transaction stored despite rejection, count=%d", count)
	}
}

func TestTransactionLifecycle_BalanceInvariant(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	ledger, publisher := newTestLedger(store)
	ctx := context.Background()

	// Income of 50 lifts the saldo to 150.
	tx, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
		SaldoID:     wallet.ID,
		Amount:      core.Money{Cents: 50_00},
		Type:        core.Income,
		Description: "birthday gift",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.CategoryID == 0 || tx.CategoryName != "groceries" {
		t.Errorf("expected resolved category, got id=%d name=%q", tx.CategoryID, tx.CategoryName)
	}
	assertSaldoCents(t, store, wallet.ID, 150_00)

	// Amount 50 -> 80 on the same saldo and type: 150 - 50 + 80 = 180.
	newAmount := core.Money{Cents: 80_00}
	if _, err := ledger.UpdateTransaction(ctx, tx.ID, TransactionPatch{Amount: &newAmount}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 180_00)

	// Delete reverts the current effect: 180 - 80 = 100.
	if err := ledger.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 100_00)

	if _, err := store.transactions().FindByID(ctx, tx.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Errorf("deleted transaction still readable, err=%v", err)
	}

	want := []string{"created", "updated", "deleted"}
	if !reflect.DeepEqual(publisher.events, want) {
		t.Errorf("published events = %v, want %v", publisher.events, want)
	}
}

func TestUpdateTransaction_MoveToOtherSaldo(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	savings := store.addSaldo("Savings", 20_00)
	ledger, _ := newTestLedger(store)
	ctx := context.Background()

	tx, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
		SaldoID:     wallet.ID,
		Amount:      core.Money{Cents: 30_00},
		Type:        core.Income,
		Description: "freelance invoice",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 130_00)

	// Moving the income leaves only the reversal on Wallet and applies
	// the effect to Savings.
	if _, err := ledger.UpdateTransaction(ctx, tx.ID, TransactionPatch{SaldoID: &savings.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 100_00)
	assertSaldoCents(t, store, savings.ID, 50_00)

	moved, _ := store.transactions().FindByID(ctx, tx.ID)
	if moved.SaldoID != savings.ID {
		t.Errorf("transaction saldo = %d, want %d", moved.SaldoID, savings.ID)
	}
}

func TestUpdateTransaction_TypeFlipUsesOldTypeForReversal(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	ledger, _ := newTestLedger(store)
	ctx := context.Background()

	tx, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
		SaldoID:     wallet.ID,
		Amount:      core.Money{Cents: 40_00},
		Type:        core.Income,
		Description: "refund",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 140_00)

	// Flip to expense, amount untouched: revert income (-40), apply
	// expense (-40) -> 60.
	expense := core.Expense
	if _, err := ledger.UpdateTransaction(ctx, tx.ID, TransactionPatch{Type: &expense}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertSaldoCents(t, store, wallet.ID, 60_00)
}

func TestUpdateTransaction_RejectionLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	ledger, _ := newTestLedger(store)
	ctx := context.Background()

	tx, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
		SaldoID:     wallet.ID,
		Amount:      core.Money{Cents: 20_00},
		Type:        core.Expense,
		Description: "groceries run",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.mu.Lock()
	saldosBefore, txsBefore, _ := store.snapshotLocked()
	store.mu.Unlock()

	// Raising the expense beyond the available balance must change nothing.
	tooMuch := core.Money{Cents: 500_00}
	_, err = ledger.UpdateTransaction(ctx, tx.ID, TransactionPatch{Amount: &tooMuch})
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	store.mu.Lock()
	saldosAfter, txsAfter, _ := store.snapshotLocked()
	store.mu.Unlock()

	if !reflect.DeepEqual(saldosBefore, saldosAfter) {
		t.Errorf("saldos changed after rejected update: %v -> %v", saldosBefore, saldosAfter)
	}
	if !reflect.DeepEqual(txsBefore, txsAfter) {
		t.Errorf("transactions changed after rejected update")
	}
}

func TestUpdateEquivalentToDeleteThenCreate(t *testing.T) {
	ctx := context.Background()

	buildLedger := func() (*memStore, *LedgerService, core.Transaction) {
		store := newMemStore()
		store.addSaldo("Wallet", 100_00)
		store.addSaldo("Savings", 40_00)
		ledger, _ := newTestLedger(store)
		tx, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
			SaldoID:     1,
			Amount:      core.Money{Cents: 25_00},
			Type:        core.Expense,
			Description: "weekly shop",
		})
		if err != nil {
			t.Fatalf("seed create: %v", err)
		}
		return store, ledger, tx
	}

	// Path A: update amount, type and saldo in one patch.
	storeA, ledgerA, txA := buildLedger()
	amount := core.Money{Cents: 10_00}
	income := core.Income
	savingsID := int64(2)
	if _, err := ledgerA.UpdateTransaction(ctx, txA.ID, TransactionPatch{
		SaldoID: &savingsID, Amount: &amount, Type: &income,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Path B: delete then create with the same final fields.
	storeB, ledgerB, txB := buildLedger()
	if err := ledgerB.DeleteTransaction(ctx, txB.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ledgerB.CreateTransaction(ctx, CreateTransactionInput{
		SaldoID:     savingsID,
		Amount:      amount,
		Type:        income,
		Description: "weekly shop",
	}); err != nil {
		t.Fatalf("re-create: %v", err)
	}

	for _, id := range []int64{1, 2} {
		a, _ := storeA.FindByID(ctx, id)
		b, _ := storeB.FindByID(ctx, id)
		if a.Amount != b.Amount {
			t.Errorf("saldo %d diverged: update path %d, delete+create path %d", id, a.Amount.Cents, b.Amount.Cents)
		}
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 100_00)
	ledger, _ := newTestLedger(store)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateTransactionInput
		want error
	}{
		{
			name: "zero amount",
			in:   CreateTransactionInput{SaldoID: wallet.ID, Type: core.Income, Description: "x"},
			want: core.ErrInvalidAmount,
		},
		{
			name: "blank description",
			in:   CreateTransactionInput{SaldoID: wallet.ID, Amount: core.Money{Cents: 100}, Type: core.Income, Description: "   "},
			want: core.ErrEmptyDescription,
		},
		{
			name: "bad type",
			in:   CreateTransactionInput{SaldoID: wallet.ID, Amount: core.Money{Cents: 100}, Type: "transfer", Description: "x"},
			want: core.ErrInvalidTransactionType,
		},
		{
			name: "unknown saldo",
			in:   CreateTransactionInput{SaldoID: 999, Amount: core.Money{Cents: 100}, Type: core.Income, Description: "x"},
			want: core.ErrSaldoNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.CreateTransaction(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestConcurrentExpenses_NoLostUpdate(t *testing.T) {
	store := newMemStore()
	wallet := store.addSaldo("Wallet", 1000_00)
	ledger, _ := newTestLedger(store)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.CreateTransaction(ctx, CreateTransactionInput{
				SaldoID:     wallet.ID,
				Amount:      core.Money{Cents: 10_00},
				Type:        core.Expense,
				Description: "coffee",
			})
			if err != nil {
				t.Errorf("concurrent create: %v", err)
			}
		}()
	}
	wg.Wait()

	assertSaldoCents(t, store, wallet.ID, 1000_00-workers*10_00)
}

func assertSaldoCents(t *testing.T, store *memStore, id, want int64) {
	t.Helper()
	saldo, err := store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find saldo %d: %v", id, err)
	}
	if saldo.Amount.Cents != want {
		t.Errorf("saldo %d amount = %d cents, want %d", id, saldo.Amount.Cents, want)
	}
}
