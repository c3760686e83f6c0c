// Package storage keeps an imported copy of the financial tables in SQLite
// so the server can run without the original workbook.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cfocopilot/internal/core"
	"cfocopilot/internal/log"
	"cfocopilot/internal/tables"

	_ "modernc.org/sqlite"
)

var (
	_ tables.Source = (*SQLiteRepository)(nil)
	_ tables.Writer = (*SQLiteRepository)(nil)
)

// ErrNoImport is returned by LastImport on a database nothing was written to.
var ErrNoImport = errors.New("no import recorded")

const (
	selectFacts = `SELECT month, entity, account_category, amount, currency FROM facts WHERE source = ? ORDER BY id`
	selectCash  = `SELECT month, entity, cash_usd FROM cash ORDER BY month, entity`
	selectFX    = `SELECT month, currency, rate_to_usd FROM fx ORDER BY month, currency`

	insertFact   = `INSERT INTO facts (source, month, entity, account_category, amount, currency) VALUES (?, ?, ?, ?, ?, ?)`
	insertCash   = `INSERT INTO cash (month, entity, cash_usd) VALUES (?, ?, ?)`
	insertFX     = `INSERT INTO fx (month, currency, rate_to_usd) VALUES (?, ?, ?)`
	insertImport = `INSERT INTO imports (origin, rows, imported_at) VALUES (?, ?, ?)`

	selectLastImport = `SELECT id, origin, rows, imported_at FROM imports ORDER BY id DESC LIMIT 1`
)

// ImportRecord describes one Write.
type ImportRecord struct {
	ID         int64
	Origin     string
	Rows       int
	ImportedAt time.Time
}

type SQLiteRepository struct {
	db     *sql.DB
	origin string
	now    func() time.Time
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := NewWithDB(db, logger)
	repo.logger.Debug("SQLite store ready", "path", dbPath, "schema_version", version)
	return repo, nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB, logger *log.Logger) *SQLiteRepository {
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:     db,
		origin: "import",
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// WithOrigin sets the label recorded with the next writes.
func (r *SQLiteRepository) WithOrigin(origin string) *SQLiteRepository {
	r.origin = origin
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (core.Workbook, error) {
	var wb core.Workbook
	for _, q := range []struct {
		sheet string
		query string
		args  []any
	}{
		{core.SheetActuals, selectFacts, []any{string(core.SourceActual)}},
		{core.SheetBudget, selectFacts, []any{string(core.SourceBudget)}},
		{core.SheetCash, selectCash, nil},
		{core.SheetFX, selectFX, nil},
	} {
		s, err := r.readSheet(ctx, q.sheet, q.query, q.args...)
		if err != nil {
			return core.Workbook{}, err
		}
		wb.Set(s)
	}
	return wb, nil
}

func (r *SQLiteRepository) readSheet(ctx context.Context, name, query string, args ...any) (core.Sheet, error) {
	columns := core.SheetColumns[name]
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Sheet{}, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	s := core.Sheet{Name: name, Header: columns}
	for rows.Next() {
		values := make([]string, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return core.Sheet{}, fmt.Errorf("scan %s: %w", name, err)
		}
		s.Rows = append(s.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return core.Sheet{}, fmt.Errorf("read %s: %w", name, err)
	}
	return s, nil
}

// Write replaces every stored table with wb in one transaction. Cells are
// stored as text; parsing happens when the ledger is built.
func (r *SQLiteRepository) Write(ctx context.Context, wb core.Workbook) error {
	ordered := make(map[string][][]string, len(core.SheetNames))
	for i, s := range wb.Sheets() {
		name := core.SheetNames[i]
		rows, err := reorder(name, s)
		if err != nil {
			return err
		}
		ordered[name] = rows
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"facts", "cash", "fx"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insert := func(query string, rows [][]string, prefix ...any) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			args := append(append([]any{}, prefix...), toArgs(row)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(insertFact, ordered[core.SheetActuals], string(core.SourceActual)); err != nil {
		return fmt.Errorf("insert actuals: %w", err)
	}
	if err := insert(insertFact, ordered[core.SheetBudget], string(core.SourceBudget)); err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	if err := insert(insertCash, ordered[core.SheetCash]); err != nil {
		return fmt.Errorf("insert cash: %w", err)
	}
	if err := insert(insertFX, ordered[core.SheetFX]); err != nil {
		return fmt.Errorf("insert fx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertImport, r.origin, wb.Rows(), r.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	r.logger.InfoContext(ctx, "Workbook imported",
		log.FieldOperation, log.OpImport,
		log.FieldRows, wb.Rows(),
		"origin", r.origin)
	return nil
}

func (r *SQLiteRepository) LastImport(ctx context.Context) (ImportRecord, error) {
	var (
		rec ImportRecord
		at  string
	)
	err := r.db.QueryRowContext(ctx, selectLastImport).Scan(&rec.ID, &rec.Origin, &rec.Rows, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportRecord{}, ErrNoImport
	}
	if err != nil {
		return ImportRecord{}, fmt.Errorf("last import: %w", err)
	}
	if rec.ImportedAt, err = time.Parse(time.RFC3339, at); err != nil {
		return ImportRecord{}, fmt.Errorf("last import: bad timestamp %q: %w", at, err)
	}
	return rec, nil
}

// reorder maps a sheet's rows onto the table's column order using the
// sheet header.
func reorder(name string, s core.Sheet) ([][]string, error) {
	columns := core.SheetColumns[name]
	if len(s.Header) == 0 && len(s.Rows) == 0 {
		return nil, nil
	}
	idx := make([]int, len(columns))
	for i, col := range columns {
		idx[i] = -1
		for j, h := range s.Header {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, &core.MalformedRecordError{Sheet: name, Row: 1, Column: col, Reason: "missing column"}
		}
	}
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		vals := make([]string, len(columns))
		for c, j := range idx {
			if j < len(row) {
				vals[c] = strings.TrimSpace(row[j])
			}
		}
		out[i] = vals
	}
	return out, nil
}

func toArgs(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
