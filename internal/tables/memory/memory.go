// Package memory keeps a workbook in process, optionally seeded from a
// directory of CSV files (actuals.csv, budget.csv, cash.csv, fx.csv).
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"cfocopilot/internal/core"
	"cfocopilot/internal/tables"
)

var (
	_ tables.Source = (*Store)(nil)
	_ tables.Writer = (*Store)(nil)
)

type Store struct {
	mu    sync.RWMutex
	wb    core.Workbook
	dir   string
	names tables.SheetNames
}

func New(wb core.Workbook) *Store {
	return &Store{wb: wb}
}

// NewFromDir reads one CSV file per table from dir. Files are looked up by
// the source names in names, with a .csv suffix. Every Load rereads the
// directory so edited files are picked up on reload.
func NewFromDir(dir string, names tables.SheetNames) (*Store, error) {
	wb, err := readDir(dir, names)
	if err != nil {
		return nil, err
	}
	st := New(wb)
	st.dir, st.names = dir, names
	return st, nil
}

func readDir(dir string, names tables.SheetNames) (core.Workbook, error) {
	var wb core.Workbook
	for _, canonical := range core.SheetNames {
		path := filepath.Join(dir, names.Resolve(canonical)+".csv")
		s, err := readCSV(path, canonical)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !tables.Required[canonical]:
			s = tables.EmptySheet(canonical)
		case errors.Is(err, fs.ErrNotExist):
			return core.Workbook{}, fmt.Errorf("%w: %s", tables.ErrSheetNotFound, path)
		case err != nil:
			return core.Workbook{}, err
		}
		wb.Set(s)
	}
	return wb, nil
}

func readCSV(path, canonical string) (core.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Sheet{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	values, err := r.ReadAll()
	if err != nil {
		return core.Sheet{}, fmt.Errorf("read %s: %w", path, err)
	}
	return core.NewSheet(canonical, values), nil
}

// Load returns a copy of the stored workbook.
func (s *Store) Load(_ context.Context) (core.Workbook, error) {
	if s.dir != "" {
		wb, err := readDir(s.dir, s.names)
		if err != nil {
			return core.Workbook{}, err
		}
		s.mu.Lock()
		s.wb = wb
		s.mu.Unlock()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out core.Workbook
	for i, sh := range s.wb.Sheets() {
		sh.Name = core.SheetNames[i]
		rows := make([][]string, len(sh.Rows))
		for j, r := range sh.Rows {
			rows[j] = slices.Clone(r)
		}
		sh.Rows = rows
		out.Set(sh)
	}
	return out, nil
}

// Write replaces the stored workbook. A store read from a directory also
// rewrites its CSV files.
func (s *Store) Write(_ context.Context, wb core.Workbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := WriteDir(s.dir, wb, s.names); err != nil {
			return err
		}
	}
	s.wb = wb
	return nil
}

// WriteDir saves wb as CSV files in dir, one per table.
func WriteDir(dir string, wb core.Workbook, names tables.SheetNames) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, s := range wb.Sheets() {
		path := filepath.Join(dir, names.Resolve(core.SheetNames[i])+".csv")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		w := csv.NewWriter(f)
		if err := w.WriteAll(tables.Rows(s)); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
