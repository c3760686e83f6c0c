package tables

import (
	"testing"

	"cfocopilot/internal/core"
)

func TestSheetNamesResolve(t *testing.T) {
	n := SheetNames{core.SheetActuals: " Actuals 2023 ", core.SheetCash: ""}
	if got := n.Resolve(core.SheetActuals); got != "Actuals 2023" {
		t.Fatalf("Resolve(actuals) = %q", got)
	}
	if got := n.Resolve(core.SheetCash); got != core.SheetCash {
		t.Fatalf("blank override should fall back, got %q", got)
	}
	if got := DefaultSheetNames().Resolve(core.SheetFX); got != core.SheetFX {
		t.Fatalf("default fx = %q", got)
	}
}

func TestNormalizeMonths(t *testing.T) {
	s := core.Sheet{
		Header: []string{"Month", "entity"},
		Rows: [][]string{
			{"2023-01-01", "A"},
			{"2023-02-01 00:00:00", "A"},
			{"2023-03", "A"},
			{"Mar 2023", "A"},
			{},
		},
	}
	got := NormalizeMonths(s)
	want := []string{"2023-01", "2023-02", "2023-03", "Mar 2023"}
	for i, w := range want {
		if got.Rows[i][0] != w {
			t.Errorf("row %d: got %q want %q", i, got.Rows[i][0], w)
		}
	}
}

func TestEmptySheetHasCanonicalHeader(t *testing.T) {
	s := EmptySheet(core.SheetCash)
	if s.Name != core.SheetCash || len(s.Header) != 3 || len(s.Rows) != 0 {
		t.Fatalf("unexpected empty sheet %+v", s)
	}
	if rows := Rows(s); len(rows) != 1 {
		t.Fatalf("Rows should hold only the header, got %d", len(rows))
	}
}
