package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kakebo/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Sync states for the remote spreadsheet mirror.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("transaction not found")

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Year  int
	Month int
	Query string // substring match on the description
	Limit int
}

// PendingTransaction is a ledger row awaiting sync to the remote
// spreadsheet, together with its version for conflict detection.
type PendingTransaction struct {
	Transaction core.Transaction
	Version     int64
	Deleted     bool
}

// SQLiteRepository owns the authoritative transaction table. All ledger
// mutations are serialized through it; report builds only ever see the
// immutable snapshots it hands out.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
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

// Create inserts a validated transaction and returns its ID.
func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (tx_date, description, amount_units) VALUES (?, ?, ?)`,
		tx.Date.Format(dateLayout), tx.Description, tx.Amount.Units)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"date", tx.Date.Format(dateLayout),
		"description", tx.Description,
		"amount_units", tx.Amount.Units)

	return id, nil
}

// CreateBatch inserts all transactions in one SQL transaction and
// returns the new IDs in input order. Either every row is accepted or
// none are. Callers publish sync messages for exactly these IDs.
func (r *SQLiteRepository) CreateBatch(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("row %d validation failed: %w", i+1, err)
		}
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (tx_date, description, amount_units) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		res, err := stmt.ExecContext(ctx, tx.Date.Format(dateLayout), tx.Description, tx.Amount.Units)
		if err != nil {
			return nil, fmt.Errorf("batch insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("batch insert id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved", "count", len(ids))
	return ids, nil
}

// Get returns a live transaction by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tx_date, description, amount_units
		   FROM transactions WHERE id = ? AND deleted_at IS NULL`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// Update edits date, description and amount in place and bumps the
// version so the sync worker pushes the new state.
func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	if tx.ID == 0 {
		return errors.New("update requires an ID")
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET tx_date = ?, description = ?, amount_units = ?,
		        version = version + 1, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND deleted_at IS NULL`,
		tx.Date.Format(dateLayout), tx.Description, tx.Amount.Units, SyncPending, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", tx.ID,
		"date", tx.Date.Format(dateLayout),
		"amount_units", tx.Amount.Units)
	return nil
}

// Delete soft-deletes a transaction; the row survives until the remote
// mirror confirms the deletion.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET deleted_at = CURRENT_TIMESTAMP, sync_status = ?, version = version + 1
		  WHERE id = ? AND deleted_at IS NULL`, SyncPending, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// List returns live transactions matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]core.Transaction, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if f.Year != 0 {
		where = append(where, "substr(tx_date, 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}
	if f.Month != 0 {
		where = append(where, "substr(tx_date, 6, 2) = ?")
		args = append(args, fmt.Sprintf("%02d", f.Month))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+q+"%")
	}

	query := `SELECT id, tx_date, description, amount_units FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY tx_date DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Snapshot returns every live transaction in insertion order. The slice
// is the immutable value handed to the report builder; the repository
// never retains a reference to it.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tx_date, description, amount_units
		   FROM transactions WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// PendingSync returns up to limit rows whose latest state has not been
// mirrored to the remote spreadsheet, deletions included.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tx_date, description, amount_units, version, deleted_at IS NOT NULL
		   FROM transactions WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingTransaction
	for rows.Next() {
		var (
			id      int64
			date    string
			desc    string
			units   int64
			version int64
			deleted bool
		)
		if err := rows.Scan(&id, &date, &desc, &units, &version, &deleted); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		out = append(out, PendingTransaction{
			Transaction: core.Transaction{
				ID:          id,
				Date:        core.Date{Time: d},
				Description: desc,
				Amount:      core.Money{Units: units},
			},
			Version: version,
			Deleted: deleted,
		})
	}
	return out, rows.Err()
}

// Version returns the current version counter for a row, deleted rows
// included. Publishers attach it to sync messages so the worker can
// tell a stale ack from a current one.
func (r *SQLiteRepository) Version(ctx context.Context, id int64) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM transactions WHERE id = ?`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read version %d: %w", id, err)
	}
	return v, nil
}

// MarkSynced records that the remote mirror holds the given version. A
// later local edit leaves the row pending again, so the check on
// version prevents overwriting that state.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ? AND version = ?`,
		SyncDone, id, version)
	if err != nil {
		return fmt.Errorf("mark synced %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError flags a row whose mirror push failed permanently.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark sync error %d: %w", id, err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		id    int64
		date  string
		desc  string
		units int64
	)
	if err := row.Scan(&id, &date, &desc, &units); err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return core.Transaction{
		ID:          id,
		Date:        core.Date{Time: d},
		Description: desc,
		Amount:      core.Money{Units: units},
	}, nil
}
