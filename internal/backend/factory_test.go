package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"cfocopilot/internal/config"
	"cfocopilot/internal/ledger/ledgertest"
	"cfocopilot/internal/tables"
	"cfocopilot/internal/tables/memory"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("oracle").IsValid() {
		t.Error("oracle should not be valid")
	}
	if got := strings.Join(GetBackendTypeStrings(), ","); got != strings.Join(config.Backends, ",") {
		t.Errorf("backend types %q differ from config %q", got, strings.Join(config.Backends, ","))
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "oracle"}); err == nil {
		t.Fatal("expected error for invalid backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/cfo.db",
		SheetActuals: "Actuals",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/cfo.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Names.Resolve("actuals") != "Actuals" || cfg.Names.Resolve("fx") != "fx" {
		t.Errorf("unexpected names %+v", cfg.Names)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		config  Config
		wantErr bool
	}{
		{Config{Type: MemoryBackend}, false},
		{Config{Type: XLSXBackend}, true},
		{Config{Type: SQLiteBackend}, true},
		{Config{Type: PostgresBackend}, true},
		{Config{Type: SheetsBackend}, true},
		{Config{Type: "nope"}, true},
	}
	for _, tt := range tests {
		if err := tt.config.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s) error = %v, wantErr %v", tt.config.Type, err, tt.wantErr)
		}
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := memory.WriteDir(dir, ledgertest.Sample().Workbook(), nil); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}

	res, err := NewFactory(nil).Create(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Close()

	wb, err := res.Source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if wb.Rows() != ledgertest.Sample().Workbook().Rows() {
		t.Errorf("rows: got %d", wb.Rows())
	}
	if res.Writer == nil {
		t.Error("memory backend should be writable")
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfo.db")
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Close()

	var _ tables.Writer = res.Writer
	if err := res.Writer.Write(context.Background(), ledgertest.Sample().Workbook()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	wb, err := res.Source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(wb.Actuals.Rows) == 0 {
		t.Error("expected actuals after import")
	}
}

func TestCreateMemoryBackendMissingDir(t *testing.T) {
	_, err := NewFactory(nil).Create(context.Background(), Config{Type: MemoryBackend, DataDirectory: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("expected error for missing data directory")
	}
}
