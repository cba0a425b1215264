// Package report builds the annual expense statement: a fixed
// quarter-by-month-by-day grid with per-day aggregated descriptions,
// monthly subtotals and a grand total, ready for tabular export.
package report

import (
	"strconv"

	"kakebo/internal/core"
)

// DaysPerMonth is the number of day rows laid out for every month
// column. The grid keeps 31 rows even for shorter months so that all
// four quarter blocks line up; out-of-range rows simply stay empty.
const DaysPerMonth = 31

type (
	// DayCell aggregates all transactions of one calendar day within one
	// month column.
	DayCell struct {
		Description string // "desc1amount1 desc2amount2 ..." in input order
		Total       int64
		Filled      bool
	}

	// MonthColumn is one month of day cells plus its subtotal.
	MonthColumn struct {
		Month    int // 1-12
		Days     [DaysPerMonth]DayCell
		Subtotal int64
	}

	// Quarter groups three consecutive month columns.
	Quarter struct {
		Months [3]MonthColumn
	}

	// Annual is the full year-end statement grid.
	Annual struct {
		Year       int
		Quarters   [4]Quarter
		GrandTotal int64
	}
)

// Build assembles the annual statement from a ledger snapshot.
//
// The target year is the maximum year present in the snapshot; the
// statement covers exactly that year and transactions from other years
// are dropped. Build never mutates its input and has no failure mode:
// an empty snapshot yields nil, the explicit "no data" outcome, and any
// non-empty snapshot yields a fully structured grid.
//
// Build trusts its callers: transactions are assumed validated on entry
// (positive amounts, plausible dates). A day field outside 1..31 would
// fall outside the grid and is skipped rather than guessed at.
func Build(txs []core.Transaction) *Annual {
	if len(txs) == 0 {
		return nil
	}

	targetYear := txs[0].Date.Year()
	for _, tx := range txs[1:] {
		if y := tx.Date.Year(); y > targetYear {
			targetYear = y
		}
	}

	a := &Annual{Year: targetYear}
	for q := 0; q < 4; q++ {
		for i := 0; i < 3; i++ {
			a.Quarters[q].Months[i].Month = q*3 + i + 1
		}
	}

	for _, tx := range txs {
		if tx.Date.Year() != targetYear {
			continue
		}
		month := tx.Date.Month()
		day := tx.Date.Day()
		if month < 1 || month > 12 || day < 1 || day > DaysPerMonth {
			continue
		}
		col := &a.Quarters[(month-1)/3].Months[(month-1)%3]
		cell := &col.Days[day-1]
		if cell.Filled {
			cell.Description += " "
		}
		cell.Description += tx.Description + strconv.FormatInt(tx.Amount.Units, 10)
		cell.Total += tx.Amount.Units
		cell.Filled = true
	}

	// Subtotals per month column, accumulated into the grand total in
	// quarter order then month order.
	for q := range a.Quarters {
		for i := range a.Quarters[q].Months {
			col := &a.Quarters[q].Months[i]
			for _, cell := range col.Days {
				col.Subtotal += cell.Total
			}
			a.GrandTotal += col.Subtotal
		}
	}

	return a
}

// Cell returns the day cell for the given month (1-12) and day (1-31).
func (a *Annual) Cell(month, day int) DayCell {
	if month < 1 || month > 12 || day < 1 || day > DaysPerMonth {
		return DayCell{}
	}
	return a.Quarters[(month-1)/3].Months[(month-1)%3].Days[day-1]
}

// MonthSubtotal returns the subtotal for the given month (1-12).
func (a *Annual) MonthSubtotal(month int) int64 {
	if month < 1 || month > 12 {
		return 0
	}
	return a.Quarters[(month-1)/3].Months[(month-1)%3].Subtotal
}
