package sheets

import (
	"context"

	"kakebo/internal/core"
	"kakebo/internal/report"
)

// Ports for outbound spreadsheet adapters.
type (
	// LedgerMirror keeps a remote copy of the ledger in step with the
	// local store.
	LedgerMirror interface {
		// Append adds one transaction row and returns a row reference.
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// Replace overwrites the whole ledger sheet with the given rows.
		Replace(ctx context.Context, txs []core.Transaction) error
		// DeleteByMatch removes the first row matching date, description
		// and amount. The remote sheet has no row IDs.
		DeleteByMatch(ctx context.Context, tx core.Transaction) error
	}

	// LedgerReader pulls the remote ledger, e.g. to seed a fresh local
	// store.
	LedgerReader interface {
		ReadAll(ctx context.Context) ([]core.Transaction, error)
	}

	// ReportExporter writes a built annual statement into the remote
	// workbook as a formatted sheet.
	ReportExporter interface {
		ExportAnnual(ctx context.Context, a *report.Annual) error
	}
)
