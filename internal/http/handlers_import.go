package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"kakebo/internal/amqp"
	"kakebo/internal/ingest"
)

const maxImportBytes = 5 << 20

// handleImportPreview reads the uploaded file's headers and first rows
// so the user can pick the column mapping.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	file, ok := s.importFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	preview, err := ingest.ReadPreview(file)
	if err != nil {
		slog.WarnContext(r.Context(), "Import preview failed", "error", err)
		writeFragment(w, http.StatusUnprocessableEntity,
			`<div class="error">Cannot read file: `+template.HTMLEscapeString(err.Error())+`</div>`)
		return
	}

	data := struct {
		Headers []string
		Rows    [][]string
	}{Headers: preview.Headers, Rows: preview.Rows}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "import_preview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Preview template execution error", "error", err, "template", "import_preview.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleImport converts the mapped rows and commits the accepted ones
// in one batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, ok := s.importFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	mapping := ingest.Mapping{
		Date:        sanitizeInput(r.FormValue("date_column")),
		Description: sanitizeInput(r.FormValue("description_column")),
		Amount:      sanitizeInput(r.FormValue("amount_column")),
	}

	result, err := ingest.Import(file, mapping)
	if err != nil {
		slog.WarnContext(r.Context(), "Import failed", "error", err)
		writeFragment(w, http.StatusUnprocessableEntity,
			`<div class="error">Import failed: `+template.HTMLEscapeString(err.Error())+`</div>`)
		return
	}
	if result.Accepted == 0 {
		writeFragment(w, http.StatusUnprocessableEntity,
			`<div class="error">No importable rows (`+strconv.Itoa(result.Rejected)+` rejected)</div>`)
		return
	}

	ids, err := s.store.CreateBatch(r.Context(), result.Transactions)
	if err != nil {
		slog.ErrorContext(r.Context(), "Import batch insert error", "error", err, "rows", result.Accepted)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to save imported rows</div>`)
		return
	}
	n := len(ids)

	s.listCache.Purge()

	// Mirror exactly the inserted rows. The pending scan covers any
	// publish that fails here.
	for _, id := range ids {
		s.publishSync(r.Context(), id, amqp.OpUpsert)
	}

	slog.InfoContext(r.Context(), "Import completed",
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"duplicates", result.Duplicates,
		"saved", n)

	w.Header().Set("HX-Trigger", `{"transactions:imported": {"count": `+strconv.Itoa(n)+`}}`)
	writeFragment(w, http.StatusOK,
		`<div class="success">Imported `+strconv.Itoa(n)+` rows (`+
			strconv.Itoa(result.Rejected)+` rejected, `+
			strconv.Itoa(result.Duplicates)+` duplicates)</div>`)
}

// importFile pulls the uploaded CSV out of the multipart form. On
// failure it writes the error response and returns ok=false.
func (s *Server) importFile(w http.ResponseWriter, r *http.Request) (multipartFile, bool) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		slog.WarnContext(r.Context(), "Multipart parse error", "error", err)
		writeFragment(w, http.StatusBadRequest, `<div class="error">Malformed upload</div>`)
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeFragment(w, http.StatusBadRequest, `<div class="error">Missing file</div>`)
		return nil, false
	}
	return file, true
}

type multipartFile interface {
	Read(p []byte) (int, error)
	Close() error
}
