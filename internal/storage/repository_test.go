package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/ledger/ledgertest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	factCols := []string{"month", "entity", "account_category", "amount", "currency"}
	mock.ExpectQuery(regexp.QuoteMeta(selectFacts)).WithArgs("actual").
		WillReturnRows(sqlmock.NewRows(factCols).AddRow("2023-01", "ParentCo", "Revenue", "100", "USD"))
	mock.ExpectQuery(regexp.QuoteMeta(selectFacts)).WithArgs("budget").
		WillReturnRows(sqlmock.NewRows(factCols).AddRow("2023-01", "ParentCo", "Revenue", "120", "USD"))
	mock.ExpectQuery(regexp.QuoteMeta(selectCash)).
		WillReturnRows(sqlmock.NewRows([]string{"month", "entity", "cash_usd"}).AddRow("2023-01", "ParentCo", "1000"))
	mock.ExpectQuery(regexp.QuoteMeta(selectFX)).
		WillReturnRows(sqlmock.NewRows([]string{"month", "currency", "rate_to_usd"}))

	wb, err := NewWithDB(db, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2023-01", "ParentCo", "Revenue", "100", "USD"}}, wb.Actuals.Rows)
	assert.Len(t, wb.Budget.Rows, 1)
	assert.Len(t, wb.Cash.Rows, 1)
	assert.Empty(t, wb.FX.Rows)
	assert.Equal(t, core.SheetColumns[core.SheetFX], wb.FX.Header)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectFacts)).WillReturnError(errors.New("disk I/O error"))

	_, err = NewWithDB(db, nil).Load(context.Background())
	assert.ErrorContains(t, err, "query actuals")
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM facts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM cash").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err = NewWithDB(db, nil).Write(context.Background(), ledgertest.Sample().Workbook())
	assert.ErrorContains(t, err, "clear cash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRejectsMissingColumn(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	wb := ledgertest.Sample().Workbook()
	wb.Cash.Header = []string{"month", "entity"}
	err = NewWithDB(db, nil).Write(context.Background(), wb)

	var mre *core.MalformedRecordError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, "cash_usd", mre.Column)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cfo.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.LastImport(ctx)
	assert.ErrorIs(t, err, ErrNoImport)

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	repo.WithOrigin("data.xlsx")

	src := ledgertest.Sample().Workbook()
	require.NoError(t, repo.Write(ctx, src))

	wb, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, src.Rows(), wb.Rows())

	want, err := ledger.Build(src)
	require.NoError(t, err)
	got, err := ledger.Build(wb)
	require.NoError(t, err)
	assert.Equal(t, want.Stats(), got.Stats())

	rec, err := repo.LastImport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data.xlsx", rec.Origin)
	assert.Equal(t, src.Rows(), rec.Rows)
	assert.True(t, fixed.Equal(rec.ImportedAt))

	// a second import replaces the data instead of appending
	require.NoError(t, repo.Write(ctx, ledgertest.New().Actual("2023-01", "ParentCo", "Revenue", "1", "USD").Workbook()))
	wb, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, wb.Rows())
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfo.db")
	v1, err := Migrate(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v1)

	v2, err := Migrate(path)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestReorderFollowsHeader(t *testing.T) {
	s := core.Sheet{
		Header: []string{"Currency", "rate_to_usd", "MONTH"},
		Rows:   [][]string{{"eur", " 1.1 ", "2023-01"}, {"gbp"}},
	}
	got, err := reorder(core.SheetFX, s)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2023-01", "eur", "1.1"}, {"", "gbp", ""}}, got)
}
