// Package ingest turns uploaded CSV files into validated ledger
// transactions. It owns the column-mapping wizard semantics: the caller
// previews the file, picks which headers hold the date, description and
// amount, and the importer accepts or rejects each row individually.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"kakebo/internal/core"
)

// ImportTag marks machine-imported descriptions so they are
// distinguishable from manual entries in the ledger and in reports.
const ImportTag = "(雲端發票)"

// Mapping names the CSV headers that hold each transaction field.
type Mapping struct {
	Date        string
	Description string
	Amount      string
}

// Preview is the slice of an uploaded file shown to the user while they
// pick the column mapping.
type Preview struct {
	Headers []string
	Rows    [][]string // up to previewRows data rows
}

// Result summarizes one import run. Rejected rows are reported, never
// silently written as zeros.
type Result struct {
	Transactions []core.Transaction
	Accepted     int
	Rejected     int
	Duplicates   int
}

const previewRows = 3

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"02/01/2006",
}

// ReadPreview reads the header row and the first few data rows. Header
// order is preserved for the mapping selectors.
func ReadPreview(r io.Reader) (Preview, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return Preview{}, fmt.Errorf("read CSV header: %w", err)
	}
	if len(headers) < 3 {
		return Preview{}, errors.New("CSV needs at least three columns (date, item, amount)")
	}

	p := Preview{Headers: headers}
	for len(p.Rows) < previewRows {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Preview{}, fmt.Errorf("read CSV row: %w", err)
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

// Import parses the whole file under the given column mapping.
//
// Per row: the date must parse under one of the accepted layouts, the
// amount must clean up to a positive whole-unit value, and the
// description is tagged with ImportTag unless it already carries it.
// Rows failing any of these are counted as rejected; rows identical to
// an already-accepted row in the same file are counted as duplicates.
func Import(r io.Reader, m Mapping) (Result, error) {
	if m.Date == "" || m.Description == "" || m.Amount == "" {
		return Result{}, errors.New("incomplete column mapping")
	}

	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return Result{}, fmt.Errorf("parse CSV: %w", err)
	}

	var res Result
	seen := map[string]struct{}{}
	for _, record := range records {
		tx, ok := convertRow(record, m)
		if !ok {
			res.Rejected++
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", tx.Date.Format("2006-01-02"), tx.Description, tx.Amount.Units)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Transactions = append(res.Transactions, tx)
		res.Accepted++
	}
	return res, nil
}

func convertRow(record map[string]string, m Mapping) (core.Transaction, bool) {
	date, ok := parseDate(record[m.Date])
	if !ok {
		return core.Transaction{}, false
	}

	desc := strings.TrimSpace(record[m.Description])
	if desc == "" {
		return core.Transaction{}, false
	}
	if !strings.Contains(desc, ImportTag) {
		desc += ImportTag
	}

	amount, err := core.ParseAmount(record[m.Amount])
	if err != nil {
		return core.Transaction{}, false
	}

	tx := core.Transaction{Date: date, Description: desc, Amount: amount}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, false
	}
	return tx, true
}

func parseDate(s string) (core.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), true
		}
	}
	return core.Date{}, false
}
