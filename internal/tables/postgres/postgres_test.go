package postgres

import (
	"context"
	"os"
	"testing"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
)

func TestSelectQuery(t *testing.T) {
	got := selectQuery("fx", core.SheetColumns[core.SheetFX])
	want := `SELECT coalesce("month"::text, ''), coalesce("currency"::text, ''), coalesce("rate_to_usd"::text, '') FROM "fx" ORDER BY 1`
	if got != want {
		t.Fatalf("selectQuery:\n got %s\nwant %s", got, want)
	}
}

func TestSelectQueryQuotesTableNames(t *testing.T) {
	got := selectQuery(`fin"actuals`, []string{"month"})
	want := `SELECT coalesce("month"::text, '') FROM "fin""actuals" ORDER BY 1`
	if got != want {
		t.Fatalf("selectQuery:\n got %s\nwant %s", got, want)
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := Open(context.Background(), "://bad", nil); err == nil {
		t.Fatal("expected error for unparsable url")
	}
}

// TestLoadIntegration runs against a live database when
// TEST_DATABASE_URL points at one with the four tables populated.
func TestLoadIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	src, err := Open(ctx, url, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	wb, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := ledger.Build(wb); err != nil {
		t.Fatalf("build: %v", err)
	}
}
