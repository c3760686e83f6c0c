// Package xlsx reads and writes the financial tables as tabs of an Excel
// workbook, one tab per table.
package xlsx

import (
	"context"
	"fmt"
	"strings"

	"cfocopilot/internal/core"
	"cfocopilot/internal/tables"

	"github.com/xuri/excelize/v2"
)

var (
	_ tables.Source = (*Workbook)(nil)
	_ tables.Writer = (*Workbook)(nil)
)

// Workbook is an .xlsx file on disk. It is reopened on every Load so a
// reload picks up edits.
type Workbook struct {
	path  string
	names tables.SheetNames
}

func New(path string, names tables.SheetNames) *Workbook {
	if names == nil {
		names = tables.DefaultSheetNames()
	}
	return &Workbook{path: path, names: names}
}

func (w *Workbook) Path() string { return w.path }

func (w *Workbook) Load(ctx context.Context) (core.Workbook, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return core.Workbook{}, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer f.Close()

	tabs := map[string]string{}
	for _, name := range f.GetSheetList() {
		tabs[strings.ToLower(strings.TrimSpace(name))] = name
	}

	var wb core.Workbook
	for _, canonical := range core.SheetNames {
		if err := ctx.Err(); err != nil {
			return core.Workbook{}, err
		}
		tab, ok := tabs[strings.ToLower(w.names.Resolve(canonical))]
		if !ok {
			if tables.Required[canonical] {
				return core.Workbook{}, fmt.Errorf("%w: tab %q in %s", tables.ErrSheetNotFound, w.names.Resolve(canonical), w.path)
			}
			wb.Set(tables.EmptySheet(canonical))
			continue
		}
		rows, err := f.GetRows(tab)
		if err != nil {
			return core.Workbook{}, fmt.Errorf("read tab %q: %w", tab, err)
		}
		wb.Set(tables.NormalizeMonths(core.NewSheet(canonical, rows)))
	}
	return wb, nil
}

// Write saves wb to the file, replacing it.
func (w *Workbook) Write(_ context.Context, wb core.Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range wb.Sheets() {
		tab := w.names.Resolve(core.SheetNames[i])
		idx, err := f.NewSheet(tab)
		if err != nil {
			return fmt.Errorf("create tab %q: %w", tab, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		for r, row := range tables.Rows(s) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]any, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(tab, cell, &values); err != nil {
				return fmt.Errorf("write tab %q row %d: %w", tab, r+1, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}
