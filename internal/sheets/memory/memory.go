// Package memory is an in-process sheets.CaseWriter used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"sync"

	"casebook/internal/core"
	"casebook/internal/sheets"
)

var _ sheets.CaseWriter = (*Ledger)(nil)

// Ledger keeps ledger rows in insertion order.
type Ledger struct {
	mu   sync.Mutex
	rows [][]string
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Upsert(_ context.Context, c core.CaseEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := sheets.Row(c)
	if i := l.indexOf(c.ID); i >= 0 {
		l.rows[i] = row
		return nil
	}
	l.rows = append(l.rows, row)
	return nil
}

func (l *Ledger) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		l.rows = append(l.rows[:i], l.rows[i+1:]...)
	}
	return nil
}

// Rows returns a copy of the ledger without the header.
func (l *Ledger) Rows() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.rows))
	for i, r := range l.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (l *Ledger) indexOf(id string) int {
	for i, r := range l.rows {
		if len(r) > 0 && r[0] == id {
			return i
		}
	}
	return -1
}
