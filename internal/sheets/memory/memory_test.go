package memory

import (
	"context"
	"testing"

	"kakebo/internal/core"
	"kakebo/internal/report"
)

func TestAppendReadDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := core.Transaction{
		Date:        core.NewDate(2024, 1, 5),
		Description: "coffee",
		Amount:      core.Money{Units: 50},
	}
	ref, err := s.Append(ctx, tx)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref == "" {
		t.Fatal("expected a row reference")
	}

	rows, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0].Description != "coffee" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.DeleteByMatch(ctx, tx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, _ = s.ReadAll(ctx)
	if len(rows) != 0 {
		t.Fatalf("row not deleted: %+v", rows)
	}

	// Deleting a missing row is a no-op.
	if err := s.DeleteByMatch(ctx, tx); err != nil {
		t.Fatalf("idempotent delete: %v", err)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestReplace(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.Append(ctx, core.Transaction{Date: core.NewDate(2024, 1, 1), Description: "old", Amount: core.Money{Units: 1}})
	err := s.Replace(ctx, []core.Transaction{
		{Date: core.NewDate(2024, 2, 2), Description: "new", Amount: core.Money{Units: 2}},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, _ := s.ReadAll(ctx)
	if len(rows) != 1 || rows[0].Description != "new" {
		t.Fatalf("replace did not overwrite: %+v", rows)
	}
}

func TestExportAnnual(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := report.Build([]core.Transaction{
		{Date: core.NewDate(2024, 1, 5), Description: "coffee", Amount: core.Money{Units: 50}},
	})
	if err := s.ExportAnnual(ctx, a); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := s.Exported(2024); got == nil || got.GrandTotal != 50 {
		t.Fatalf("unexpected exported statement: %+v", got)
	}

	if err := s.ExportAnnual(ctx, nil); err == nil {
		t.Fatal("expected error for nil statement")
	}
}
