package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"moneta/internal/core"
)

// memStore is an in-memory implementation of every persistence port plus
// the atomic unit, with snapshot-based rollback so rejected operations
// leave state byte-identical.
type memStore struct {
	mu     sync.Mutex
	saldos map[int64]core.Saldo
	txs    map[int64]core.Transaction
	cats   map[int64]core.Category

	nextSaldoID int64
	nextTxID    int64
	nextCatID   int64
}

func newMemStore() *memStore {
	return &memStore{
		saldos: make(map[int64]core.Saldo),
		txs:    make(map[int64]core.Transaction),
		cats:   make(map[int64]core.Category),
	}
}

func (m *memStore) addSaldo(name string, cents int64) core.Saldo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSaldoID++
	s := core.Saldo{ID: m.nextSaldoID, Name: name, Amount: core.Money{Cents: cents}}
	m.saldos[s.ID] = s
	return s
}

func (m *memStore) addCategory(name string, t core.TransactionType) core.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCatID++
	c := core.Category{ID: m.nextCatID, Name: name, Type: t}
	m.cats[c.ID] = c
	return c
}

// addTransaction seeds a transaction without ledger bookkeeping.
func (m *memStore) addTransaction(saldoID, catID int64, amountCents int64, t core.TransactionType, desc string) core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTxID++
	tx := core.Transaction{
		ID:          m.nextTxID,
		SaldoID:     saldoID,
		CategoryID:  catID,
		Amount:      core.Money{Cents: amountCents},
		Type:        t,
		Description: desc,
		CreatedAt:   time.Now(),
	}
	m.txs[tx.ID] = tx
	return tx
}

func (m *memStore) snapshotLocked() (map[int64]core.Saldo, map[int64]core.Transaction, map[int64]core.Category) {
	saldos := make(map[int64]core.Saldo, len(m.saldos))
	for k, v := range m.saldos {
		saldos[k] = v
	}
	txs := make(map[int64]core.Transaction, len(m.txs))
	for k, v := range m.txs {
		txs[k] = v
	}
	cats := make(map[int64]core.Category, len(m.cats))
	for k, v := range m.cats {
		cats[k] = v
	}
	return saldos, txs, cats
}

// WithinTx implements Atomic: on error every map is restored.
func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	saldos, txs, cats := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.saldos, m.txs, m.cats = saldos, txs, cats
		m.mu.Unlock()
		return err
	}
	return nil
}

// --- SaldoRepo ---

func (m *memStore) FindByID(ctx context.Context, id int64) (core.Saldo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saldos[id]
	if !ok {
		return core.Saldo{}, core.ErrSaldoNotFound
	}
	return s, nil
}

func (m *memStore) Save(ctx context.Context, s core.Saldo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saldos[s.ID]; !ok {
		return core.ErrSaldoNotFound
	}
	m.saldos[s.ID] = s
	return nil
}

// --- CategoryRepo ---

func (m *memStore) FindByNameAndType(ctx context.Context, name string, t core.TransactionType) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cats {
		if strings.EqualFold(c.Name, name) && c.Type == t {
			return c, nil
		}
	}
	return core.Category{}, core.ErrCategoryNotFound
}

func (m *memStore) Create(ctx context.Context, c core.Category) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCatID++
	c.ID = m.nextCatID
	m.cats[c.ID] = c
	return c, nil
}

// --- transaction port, exposed as a distinct view to satisfy the
// method-name overlap with SaldoRepo ---

type memTransactions struct {
	m *memStore
	// findPageErr lets tests inject paging failures.
	findPageErr error
}

func (m *memStore) transactions() *memTransactions { return &memTransactions{m: m} }

func (t *memTransactions) FindPage(ctx context.Context, skip, limit int) ([]core.Transaction, error) {
	if t.findPageErr != nil {
		return nil, t.findPageErr
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	ids := make([]int64, 0, len(t.m.txs))
	for id := range t.m.txs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var page []core.Transaction
	for i := skip; i < len(ids) && len(page) < limit; i++ {
		tx := t.m.txs[ids[i]]
		if cat, ok := t.m.cats[tx.CategoryID]; ok {
			tx.CategoryName = cat.Name
		}
		page = append(page, tx)
	}
	return page, nil
}

func (t *memTransactions) FindByID(ctx context.Context, id int64) (core.Transaction, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	tx, ok := t.m.txs[id]
	if !ok {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if cat, ok := t.m.cats[tx.CategoryID]; ok {
		tx.CategoryName = cat.Name
	}
	return tx, nil
}

func (t *memTransactions) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.nextTxID++
	tx.ID = t.m.nextTxID
	t.m.txs[tx.ID] = tx
	return tx, nil
}

func (t *memTransactions) Update(ctx context.Context, tx core.Transaction) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.txs[tx.ID]; !ok {
		return core.ErrTransactionNotFound
	}
	t.m.txs[tx.ID] = tx
	return nil
}

func (t *memTransactions) Delete(ctx context.Context, id int64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.txs[id]; !ok {
		return core.ErrTransactionNotFound
	}
	delete(t.m.txs, id)
	return nil
}

func (t *memTransactions) CountAll(ctx context.Context) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return int64(len(t.m.txs)), nil
}

func (t *memTransactions) SumByPeriod(ctx context.Context, from, to time.Time) ([]core.PeriodSum, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	sums := make(map[string]map[core.TransactionType]int64)
	for _, tx := range t.m.txs {
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		period := tx.CreatedAt.UTC().Format("2006-01")
		if sums[period] == nil {
			sums[period] = make(map[core.TransactionType]int64)
		}
		sums[period][tx.Type] += tx.Amount.Cents
	}
	var out []core.PeriodSum
	for period, byType := range sums {
		for typ, cents := range byType {
			out = append(out, core.PeriodSum{Period: period, Type: typ, Sum: core.Money{Cents: cents}})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// fixedPredictor always returns the same label.
type fixedPredictor struct{ label string }

func (p fixedPredictor) Predict(ctx context.Context, description string, t core.TransactionType) string {
	return p.label
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishTransactionChanged(ctx context.Context, txID int64, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, action)
	return nil
}
