package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"kakebo/internal/export"
	"kakebo/internal/report"
)

// handleReportCSV builds the annual statement from the current ledger
// snapshot and streams it as a CSV download.
func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot error", "error", err)
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}

	annual := report.Build(txs)
	if annual == nil {
		// Empty ledger: nothing to report, which is not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(annual)+`"`)
	if err := export.WriteCSV(w, annual); err != nil {
		slog.ErrorContext(r.Context(), "CSV export error", "error", err, "year", annual.Year)
	}
}

// handleReportExport pushes the formatted statement sheet to the remote
// spreadsheet.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeFragment(w, http.StatusServiceUnavailable, `<div class="error">Remote export is not configured</div>`)
		return
	}

	txs, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot error", "error", err)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to read ledger</div>`)
		return
	}

	annual := report.Build(txs)
	if annual == nil {
		writeFragment(w, http.StatusOK, `<div class="notice">Ledger is empty; nothing to export</div>`)
		return
	}

	if err := s.exporter.ExportAnnual(r.Context(), annual); err != nil {
		slog.ErrorContext(r.Context(), "Report export error", "error", err, "year", annual.Year)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to export statement</div>`)
		return
	}

	slog.InfoContext(r.Context(), "Statement exported",
		"year", annual.Year,
		"grand_total", annual.GrandTotal)
	writeFragment(w, http.StatusOK,
		`<div class="success">Exported statement for `+strconv.Itoa(annual.Year)+`</div>`)
}
