package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/ledger/ledgertest"
	"cfocopilot/internal/tables"
)

func TestWriteDirThenLoad(t *testing.T) {
	dir := t.TempDir()
	wb := ledgertest.Sample().Workbook()
	if err := WriteDir(dir, wb, tables.DefaultSheetNames()); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := NewFromDir(dir, tables.DefaultSheetNames())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Rows() != wb.Rows() {
		t.Fatalf("rows = %d want %d", got.Rows(), wb.Rows())
	}
	if _, err := ledger.Build(got); err != nil {
		t.Fatalf("loaded workbook does not build: %v", err)
	}
}

func TestNewFromDirOptionalTables(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"facts.csv":  "month,entity,account_category,amount,currency\n2023-01,ParentCo,Revenue,\"1,000\",USD\n",
		"budget.csv": "month,entity,account_category,amount,currency\n",
		"fx.csv":     "month,currency,rate_to_usd\n2023-01,USD,1\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	names := tables.DefaultSheetNames()
	names[core.SheetActuals] = "facts"

	s, err := NewFromDir(dir, names)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wb, _ := s.Load(context.Background())
	if len(wb.Actuals.Rows) != 1 || wb.Actuals.Rows[0][3] != "1,000" {
		t.Fatalf("actuals = %v", wb.Actuals.Rows)
	}
	if len(wb.Cash.Header) != 3 || len(wb.Cash.Rows) != 0 {
		t.Fatalf("missing cash should load empty, got %+v", wb.Cash)
	}
	if _, err := ledger.Build(wb); err != nil {
		t.Fatalf("build: %v", err)
	}
}

func TestNewFromDirMissingRequired(t *testing.T) {
	_, err := NewFromDir(t.TempDir(), tables.DefaultSheetNames())
	if !errors.Is(err, tables.ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestStoreWriteReplaces(t *testing.T) {
	s := New(core.Workbook{})
	wb := ledgertest.Sample().Workbook()
	if err := s.Write(context.Background(), wb); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Load(context.Background())
	got.Actuals.Rows[0][0] = "mutated"
	again, _ := s.Load(context.Background())
	if again.Actuals.Rows[0][0] == "mutated" {
		t.Fatalf("Load must return a copy")
	}
}

func TestDirStoreRereadsAndPersists(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDir(dir, ledgertest.Sample().Workbook(), nil); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	small := ledgertest.New().Actual("2024-01", "ParentCo", "Revenue", "10", "USD").Workbook()
	if err := WriteDir(dir, small, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows() != 2 {
		t.Fatalf("expected reload to see edited files, got %d rows", got.Rows())
	}

	if err := s.Write(context.Background(), ledgertest.Sample().Workbook()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "fx.csv")); err != nil {
		t.Fatalf("write should persist csv files: %v", err)
	}
	again, err := NewFromDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	wb, _ := again.Load(context.Background())
	if wb.Rows() != ledgertest.Sample().Workbook().Rows() {
		t.Fatalf("rows after write: got %d", wb.Rows())
	}
}
