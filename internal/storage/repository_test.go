package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kakebo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateGetUpdateDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, core.Transaction{
		Date:        core.NewDate(2024, 1, 5),
		Description: "coffee",
		Amount:      core.Money{Units: 50},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "coffee" || got.Amount.Units != 50 {
		t.Fatalf("unexpected transaction: %+v", got)
	}
	if got.Date.Year() != 2024 || got.Date.Month() != 1 || got.Date.Day() != 5 {
		t.Fatalf("date round-trip failed: %v", got.Date)
	}

	got.Description = "espresso"
	got.Amount.Units = 60
	got.Date = core.NewDate(2024, 1, 6)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.Description != "espresso" || updated.Amount.Units != 60 || updated.Date.Day() != 6 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, core.Transaction{
		Date:        core.NewDate(2024, 1, 5),
		Description: "zero",
		Amount:      core.Money{Units: 0},
	}); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seed := []core.Transaction{
		{Date: core.NewDate(2023, 12, 31), Description: "fireworks", Amount: core.Money{Units: 300}},
		{Date: core.NewDate(2024, 1, 5), Description: "coffee", Amount: core.Money{Units: 50}},
		{Date: core.NewDate(2024, 1, 5), Description: "tea", Amount: core.Money{Units: 30}},
		{Date: core.NewDate(2024, 4, 10), Description: "coffee beans", Amount: core.Money{Units: 200}},
	}
	for _, tx := range seed {
		if _, err := repo.Create(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	byYear, err := repo.List(ctx, Filter{Year: 2024})
	if err != nil {
		t.Fatalf("list by year: %v", err)
	}
	if len(byYear) != 3 {
		t.Fatalf("year filter: got %d rows, want 3", len(byYear))
	}

	byMonth, err := repo.List(ctx, Filter{Year: 2024, Month: 1})
	if err != nil {
		t.Fatalf("list by month: %v", err)
	}
	if len(byMonth) != 2 {
		t.Fatalf("month filter: got %d rows, want 2", len(byMonth))
	}

	byQuery, err := repo.List(ctx, Filter{Query: "coffee"})
	if err != nil {
		t.Fatalf("list by query: %v", err)
	}
	if len(byQuery) != 2 {
		t.Fatalf("query filter: got %d rows, want 2", len(byQuery))
	}

	limited, err := repo.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit: got %d rows, want 1", len(limited))
	}
	// Newest first.
	if limited[0].Description != "coffee beans" {
		t.Fatalf("expected newest row first, got %q", limited[0].Description)
	}
}

func TestSnapshotInsertionOrderAndDeletedExcluded(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, _ := repo.Create(ctx, core.Transaction{Date: core.NewDate(2024, 2, 1), Description: "a", Amount: core.Money{Units: 1}})
	second, _ := repo.Create(ctx, core.Transaction{Date: core.NewDate(2024, 1, 1), Description: "b", Amount: core.Money{Units: 2}})
	if err := repo.Delete(ctx, first); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 1 || snap[0].ID != second {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCreateBatchAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ids, err := repo.CreateBatch(ctx, []core.Transaction{
		{Date: core.NewDate(2024, 3, 1), Description: "x", Amount: core.Money{Units: 10}},
		{Date: core.NewDate(2024, 3, 2), Description: "y", Amount: core.Money{Units: 20}},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("batch inserted %d, want 2", len(ids))
	}
	// IDs come back in input order so publishers can target them.
	x, err := repo.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get(%d): %v", ids[0], err)
	}
	if x.Description != "x" {
		t.Fatalf("ids[0] = %q, want first input row", x.Description)
	}

	// One invalid row rejects the whole batch.
	if _, err := repo.CreateBatch(ctx, []core.Transaction{
		{Date: core.NewDate(2024, 3, 3), Description: "ok", Amount: core.Money{Units: 10}},
		{Date: core.NewDate(2024, 3, 4), Description: "", Amount: core.Money{Units: 10}},
	}); err == nil {
		t.Fatal("expected batch rejection")
	}
	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("failed batch leaked rows: %d", len(snap))
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, core.Transaction{
		Date: core.NewDate(2024, 5, 5), Description: "sync me", Amount: core.Money{Units: 77},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Transaction.ID != id || pending[0].Deleted {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	if err := repo.MarkSynced(ctx, id, pending[0].Version); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending set, got %+v", pending)
	}

	// A delete re-enters the pending queue as a deletion.
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || !pending[0].Deleted {
		t.Fatalf("expected pending deletion, got %+v", pending)
	}
}
