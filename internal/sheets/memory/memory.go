// Package memory is an in-process stand-in for the remote spreadsheet,
// used in development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kakebo/internal/core"
	"kakebo/internal/report"
)

type Store struct {
	mu      sync.Mutex
	rows    []core.Transaction
	exports map[int]*report.Annual
}

func New() *Store {
	return &Store{exports: make(map[int]*report.Annual)}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, tx)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Replace overwrites the mirrored ledger.
func (s *Store) Replace(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.Transaction(nil), txs...)
	return nil
}

// DeleteByMatch removes the first row with the same date, description
// and amount. A missing row is not an error; deletions are idempotent.
func (s *Store) DeleteByMatch(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.Date.Equal(tx.Date.Time) && row.Description == tx.Description && row.Amount == tx.Amount {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// ReadAll returns a copy of the mirrored ledger.
func (s *Store) ReadAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...), nil
}

// ExportAnnual keeps the latest exported statement per year.
func (s *Store) ExportAnnual(_ context.Context, a *report.Annual) error {
	if a == nil {
		return fmt.Errorf("nothing to export: empty statement")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[a.Year] = a
	return nil
}

// Exported returns the last statement exported for the given year.
func (s *Store) Exported(year int) *report.Annual {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports[year]
}
