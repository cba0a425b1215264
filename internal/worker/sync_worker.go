// Package worker mirrors local ledger mutations to the remote
// spreadsheet. The HTTP process commits to SQLite and publishes a
// sync message; this worker applies the row's current state remotely.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kakebo/internal/amqp"
	"kakebo/internal/sheets"
	"kakebo/internal/storage"
)

// SyncWorker applies queued ledger mutations to the remote mirror.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	mirror    sheets.LedgerMirror
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, mirror sheets.LedgerMirror, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one mirror request from AMQP. The
// message carries only ID/op/version; the authoritative row state is
// read from the database at processing time, so a message overtaken by
// a later edit simply mirrors the newer state.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"op", msg.Op,
		"version", msg.Version)

	switch msg.Op {
	case amqp.OpUpsert:
		return w.mirrorUpsert(ctx, msg.ID, msg.Version)
	case amqp.OpDelete:
		return w.mirrorDelete(ctx, msg.ID, msg.Version)
	default:
		return fmt.Errorf("unknown sync operation %q", msg.Op)
	}
}

// mirrorUpsert pushes a row's current state. Version 1 is a row the
// mirror has never seen, so a plain append suffices. Any higher
// version means the mirror may hold a stale copy of the row; the sheet
// has no row IDs to address it by, so the ledger snapshot is rewritten
// wholesale, the way the source spreadsheet is saved.
func (w *SyncWorker) mirrorUpsert(ctx context.Context, id int64, version int64) error {
	tx, err := w.storage.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted locally before the upsert was processed; the
			// delete message will handle the remote side.
			slog.WarnContext(ctx, "Transaction gone before mirror upsert", "id", id)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if version > 1 {
		if err := w.replaceFromSnapshot(ctx); err != nil {
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
			return err
		}
	} else {
		ref, err := w.mirror.Append(ctx, tx)
		if err != nil {
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
			return fmt.Errorf("append to mirror: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored new transaction",
			"id", id,
			"mirror_ref", ref,
			"description", tx.Description,
			"amount_units", tx.Amount.Units)
	}

	// The version guard keeps the row pending when it was edited again
	// after this message was published.
	if err := w.storage.MarkSynced(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}
	return nil
}

// replaceFromSnapshot rewrites the whole remote ledger from the local
// live rows. Edits and any drift converge in one write.
func (w *SyncWorker) replaceFromSnapshot(ctx context.Context) error {
	txs, err := w.storage.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot for mirror replace: %w", err)
	}
	if err := w.mirror.Replace(ctx, txs); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	slog.InfoContext(ctx, "Rewrote mirrored ledger", "rows", len(txs))
	return nil
}

func (w *SyncWorker) mirrorDelete(ctx context.Context, id int64, version int64) error {
	// The row is soft-deleted locally; find it in the pending queue to
	// recover the data needed for the remote by-value match.
	pending, err := w.storage.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("load pending deletions: %w", err)
	}
	for _, p := range pending {
		if p.Transaction.ID != id || !p.Deleted {
			continue
		}
		if err := w.mirror.DeleteByMatch(ctx, p.Transaction); err != nil {
			if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
			}
			return fmt.Errorf("delete from mirror: %w", err)
		}
		if err := w.storage.MarkSynced(ctx, id, version); err != nil {
			slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
		}
		slog.InfoContext(ctx, "Mirrored deletion", "id", id)
		return nil
	}

	slog.WarnContext(ctx, "No pending deletion state for message", "id", id)
	return nil
}

// ProcessPending mirrors any rows still marked pending. This is the
// recovery path for lost AMQP messages and worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	// Edits and deletions mean the mirror holds stale rows; one
	// snapshot rewrite converges everything. Fresh rows alone can be
	// appended individually.
	createsOnly := true
	for _, p := range pending {
		if p.Deleted || p.Version > 1 {
			createsOnly = false
			break
		}
	}

	if !createsOnly {
		if err := w.replaceFromSnapshot(ctx); err != nil {
			return err
		}
		for _, p := range pending {
			if err := w.storage.MarkSynced(ctx, p.Transaction.ID, p.Version); err != nil {
				slog.ErrorContext(ctx, "Failed to mark as synced",
					"id", p.Transaction.ID, "error", err)
			}
		}
		return nil
	}

	for _, p := range pending {
		if _, err := w.mirror.Append(ctx, p.Transaction); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending transaction",
				"id", p.Transaction.ID, "error", err)
			if markErr := w.storage.MarkSyncError(ctx, p.Transaction.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error",
					"id", p.Transaction.ID, "error", markErr)
			}
			continue
		}
		if err := w.storage.MarkSynced(ctx, p.Transaction.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to mark as synced",
				"id", p.Transaction.ID, "error", err)
		}
	}

	return nil
}

// SeedFromMirror loads the remote ledger into an empty local store,
// e.g. on the first run against a spreadsheet that predates this
// service. Seeded rows are marked synced so they are not pushed back.
// A non-empty store is left untouched.
func (w *SyncWorker) SeedFromMirror(ctx context.Context, reader sheets.LedgerReader) error {
	local, err := w.storage.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot before seed: %w", err)
	}
	if len(local) > 0 {
		return nil
	}

	remote, err := reader.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read remote ledger: %w", err)
	}
	if len(remote) == 0 {
		return nil
	}

	ids, err := w.storage.CreateBatch(ctx, remote)
	if err != nil {
		return fmt.Errorf("seed local store: %w", err)
	}
	for _, id := range ids {
		if err := w.storage.MarkSynced(ctx, id, 1); err != nil {
			slog.ErrorContext(ctx, "Failed to mark seeded row as synced", "id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "Seeded local store from remote ledger", "rows", len(ids))
	return nil
}

// RunPendingScan loops ProcessPending on the given interval until the
// context ends.
func (w *SyncWorker) RunPendingScan(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Recover immediately on startup.
	if err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup pending scan failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending scan failed", "error", err)
			}
		}
	}
}
