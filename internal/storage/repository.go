// Package storage implements the persistence ports over SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moneta/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the transaction, saldo and category ports
// plus the WithinTx atomic unit used by the ledger.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _txlock=immediate takes the write lock when a transaction starts,
	// serializing read-modify-write cycles at the database.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// WithinTx runs fn inside a database transaction carried through the
// context; repository calls made with that context join it. Nested calls
// reuse the surrounding transaction.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) conn(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// --- saldos ---

func (r *SQLiteRepository) CreateSaldo(ctx context.Context, s core.Saldo) (core.Saldo, error) {
	res, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO saldos (name, amount_cents, description) VALUES (?, ?, ?)`,
		s.Name, s.Amount.Cents, s.Description)
	if err != nil {
		return core.Saldo{}, fmt.Errorf("insert saldo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Saldo{}, fmt.Errorf("saldo id: %w", err)
	}
	s.ID = id
	return s, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (core.Saldo, error) {
	var s core.Saldo
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, amount_cents, description FROM saldos WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Amount.Cents, &s.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Saldo{}, core.ErrSaldoNotFound
	}
	if err != nil {
		return core.Saldo{}, fmt.Errorf("select saldo %d: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s core.Saldo) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE saldos SET name = ?, amount_cents = ?, description = ? WHERE id = ?`,
		s.Name, s.Amount.Cents, s.Description, s.ID)
	if err != nil {
		return fmt.Errorf("update saldo %d: %w", s.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update saldo %d: %w", s.ID, err)
	}
	if affected == 0 {
		return core.ErrSaldoNotFound
	}
	return nil
}

// --- categories ---

// FindByNameAndType matches on lower(name) with bound parameters so the
// classifier-produced label is never interpreted as a pattern.
func (r *SQLiteRepository) FindByNameAndType(ctx context.Context, name string, t core.TransactionType) (core.Category, error) {
	var c core.Category
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, type, description FROM categories WHERE lower(name) = lower(?) AND type = ?`,
		name, string(t)).
		Scan(&c.ID, &c.Name, &c.Type, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category %q/%s: %w", name, t, err)
	}
	return c, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO categories (name, type, description) VALUES (?, ?, ?)`,
		c.Name, string(c.Type), c.Description)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category %q: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	c.ID = id
	return c, nil
}

// --- transactions ---

const transactionColumns = `t.id, t.user_id, t.category_id, t.saldo_id, t.amount_cents,
	t.description, t.type, t.created_at, c.name`

func (r *SQLiteRepository) scanTransaction(row interface{ Scan(dest ...any) error }) (core.Transaction, error) {
	var tx core.Transaction
	var createdAt string
	err := row.Scan(&tx.ID, &tx.UserID, &tx.CategoryID, &tx.SaldoID, &tx.Amount.Cents,
		&tx.Description, &tx.Type, &createdAt, &tx.CategoryName)
	if err != nil {
		return core.Transaction{}, err
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	tx.CreatedAt = ts
	return tx, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, saldo_id, amount_cents, description, type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.CategoryID, tx.SaldoID, tx.Amount.Cents, tx.Description,
		string(tx.Type), tx.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	tx.ID = id
	return tx, nil
}

func (r *SQLiteRepository) FindTransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id)
	tx, err := r.scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("select transaction %d: %w", id, err)
	}
	return tx, nil
}

// FindPage returns transactions in id order with their category name.
func (r *SQLiteRepository) FindPage(ctx context.Context, skip, limit int) ([]core.Transaction, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 ORDER BY t.id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("select transaction page: %w", err)
	}
	defer rows.Close()

	var page []core.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		page = append(page, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction page: %w", err)
	}
	return page, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE transactions SET user_id = ?, category_id = ?, saldo_id = ?, amount_cents = ?,
		 description = ?, type = ? WHERE id = ?`,
		tx.UserID, tx.CategoryID, tx.SaldoID, tx.Amount.Cents, tx.Description, string(tx.Type), tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if affected == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if affected == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// SumByPeriod aggregates signed-neutral sums per month and type over the
// given created_at range.
func (r *SQLiteRepository) SumByPeriod(ctx context.Context, from, to time.Time) ([]core.PeriodSum, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT strftime('%Y-%m', created_at) AS period, type, SUM(amount_cents)
		 FROM transactions
		 WHERE created_at >= ? AND created_at <= ?
		 GROUP BY period, type
		 ORDER BY period, type`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("sum transactions by period: %w", err)
	}
	defer rows.Close()

	var sums []core.PeriodSum
	for rows.Next() {
		var ps core.PeriodSum
		var t string
		if err := rows.Scan(&ps.Period, &t, &ps.Sum.Cents); err != nil {
			return nil, fmt.Errorf("scan period sum: %w", err)
		}
		ps.Type = core.TransactionType(strings.ToLower(t))
		sums = append(sums, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate period sums: %w", err)
	}
	return sums, nil
}
