package http

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kakebo/internal/amqp"
	"kakebo/internal/core"
	"kakebo/internal/storage"
)

const formDateLayout = "2006-01-02"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Today string
		Year  int
		Month int
	}{
		Today: now.Format(formDateLayout),
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseTransactionForm reads date, description and amount from the
// form. The amount field accepts a plain number or an arithmetic
// expression such as "50+20".
func parseTransactionForm(r *http.Request) (core.Transaction, string, error) {
	dateStr := strings.TrimSpace(r.Form.Get("date"))
	d, err := time.Parse(formDateLayout, dateStr)
	if err != nil {
		return core.Transaction{}, "invalid date", err
	}
	date := core.NewDate(d.Year(), int(d.Month()), d.Day())

	desc := sanitizeInput(r.Form.Get("description"))
	amountStr := strings.TrimSpace(r.Form.Get("amount"))

	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		// Not a plain number; try it as an expression.
		amount, err = core.EvalAmountExpr(amountStr)
		if err != nil {
			return core.Transaction{}, "invalid amount", err
		}
	}

	tx := core.Transaction{Date: date, Description: desc, Amount: amount}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, "invalid transaction", err
	}
	return tx, "", nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		writeFragment(w, http.StatusBadRequest, `<div class="error">Malformed request</div>`)
		return
	}

	tx, reason, err := parseTransactionForm(r)
	if err != nil {
		slog.WarnContext(r.Context(), "Rejected transaction form", "reason", reason, "error", err)
		writeFragment(w, http.StatusUnprocessableEntity,
			`<div class="error">`+template.HTMLEscapeString(reason+": "+err.Error())+`</div>`)
		return
	}

	id, err := s.store.Create(r.Context(), tx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction create error", "error", err, "description", tx.Description)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to save transaction</div>`)
		return
	}

	s.listCache.Purge()
	s.publishSync(r.Context(), id, amqp.OpUpsert)

	w.Header().Set("HX-Trigger", `{"transaction:created": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	writeFragment(w, http.StatusOK,
		`<div class="success">Saved #`+strconv.FormatInt(id, 10)+`: `+
			template.HTMLEscapeString(tx.Description)+` `+
			strconv.FormatInt(tx.Amount.Units, 10)+`</div>`)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeFragment(w, http.StatusBadRequest, `<div class="error">Invalid transaction ID</div>`)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeFragment(w, http.StatusBadRequest, `<div class="error">Malformed request</div>`)
		return
	}

	tx, reason, err := parseTransactionForm(r)
	if err != nil {
		slog.WarnContext(r.Context(), "Rejected transaction edit", "id", id, "reason", reason, "error", err)
		writeFragment(w, http.StatusUnprocessableEntity,
			`<div class="error">`+template.HTMLEscapeString(reason+": "+err.Error())+`</div>`)
		return
	}
	tx.ID = id

	if err := s.store.Update(r.Context(), tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeFragment(w, http.StatusNotFound, `<div class="error">Transaction not found</div>`)
			return
		}
		slog.ErrorContext(r.Context(), "Transaction update error", "error", err, "id", id)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to update transaction</div>`)
		return
	}

	s.listCache.Purge()
	s.publishSync(r.Context(), id, amqp.OpUpsert)

	w.Header().Set("HX-Trigger", `{"transaction:updated": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	writeFragment(w, http.StatusOK, `<div class="success">Transaction updated</div>`)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeFragment(w, http.StatusBadRequest, `<div class="error">Invalid transaction ID</div>`)
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeFragment(w, http.StatusNotFound, `<div class="error">Transaction not found</div>`)
			return
		}
		slog.ErrorContext(r.Context(), "Transaction delete error", "error", err, "id", id)
		writeFragment(w, http.StatusInternalServerError, `<div class="error">Failed to delete transaction</div>`)
		return
	}

	s.listCache.Purge()
	s.publishSync(r.Context(), id, amqp.OpDelete)

	w.Header().Set("HX-Trigger", `{"transaction:deleted": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	writeFragment(w, http.StatusOK, `<div class="success">Transaction deleted</div>`)
}

// handleListTransactions renders the filtered list partial.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	f := storage.Filter{Limit: 50}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			f.Year = y
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			f.Month = m
		}
	}
	f.Query = sanitizeInput(q.Get("q"))
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}

	key := listCacheKey(f)
	if html, found := s.listCache.Get(key); found {
		slog.DebugContext(r.Context(), "List cache hit", "key", key)
		_, _ = w.Write([]byte(html))
		return
	}

	txs, err := s.store.List(r.Context(), f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction list error", "error", err, "year", f.Year, "month", f.Month)
		_, _ = w.Write([]byte(`<div class="error">Failed to load transactions</div>`))
		return
	}

	html, err := s.renderTransactionList(txs)
	if err != nil {
		slog.ErrorContext(r.Context(), "List template execution error", "error", err, "template", "transactions.html")
		_, _ = w.Write([]byte(`<div class="error">Failed to render transactions</div>`))
		return
	}

	s.listCache.Set(key, html)
	_, _ = w.Write([]byte(html))
}

type transactionRow struct {
	ID          int64
	Date        string
	Description string
	Amount      string
}

func (s *Server) renderTransactionList(txs []core.Transaction) (string, error) {
	rows := make([]transactionRow, 0, len(txs))
	var total int64
	for _, tx := range txs {
		rows = append(rows, transactionRow{
			ID:          tx.ID,
			Date:        tx.Date.Format(formDateLayout),
			Description: tx.Description,
			Amount:      strconv.FormatInt(tx.Amount.Units, 10),
		})
		total += tx.Amount.Units
	}
	data := struct {
		Rows  []transactionRow
		Total string
		Empty bool
	}{Rows: rows, Total: strconv.FormatInt(total, 10), Empty: len(rows) == 0}

	var buf bytes.Buffer
	if s.templates == nil {
		return "", errors.New("templates not loaded")
	}
	if err := s.templates.ExecuteTemplate(&buf, "transactions.html", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func listCacheKey(f storage.Filter) string {
	return strconv.Itoa(f.Year) + "|" + strconv.Itoa(f.Month) + "|" + f.Query + "|" + strconv.Itoa(f.Limit)
}

func writeFragment(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

// sanitizeInput trims whitespace and strips control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
