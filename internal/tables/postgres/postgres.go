// Package postgres reads the financial tables from a Postgres database,
// one table per sheet with the sheet's columns.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfocopilot/internal/core"
	"cfocopilot/internal/tables"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ tables.Source = (*Source)(nil)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

type Source struct {
	pool  *pgxpool.Pool
	names tables.SheetNames
}

// Open connects a pool to databaseURL.
func Open(ctx context.Context, databaseURL string, names tables.SheetNames) (*Source, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(pool, names), nil
}

func New(pool *pgxpool.Pool, names tables.SheetNames) *Source {
	if names == nil {
		names = tables.DefaultSheetNames()
	}
	return &Source{pool: pool, names: names}
}

func (s *Source) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Source) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Source) Load(ctx context.Context) (core.Workbook, error) {
	var wb core.Workbook
	for _, canonical := range core.SheetNames {
		sheet, err := s.readTable(ctx, canonical)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
				if tables.Required[canonical] {
					return core.Workbook{}, fmt.Errorf("%w: table %q", tables.ErrSheetNotFound, s.names.Resolve(canonical))
				}
				wb.Set(tables.EmptySheet(canonical))
				continue
			}
			return core.Workbook{}, err
		}
		wb.Set(tables.NormalizeMonths(sheet))
	}
	return wb, nil
}

func (s *Source) readTable(ctx context.Context, canonical string) (core.Sheet, error) {
	columns := core.SheetColumns[canonical]
	query := selectQuery(s.names.Resolve(canonical), columns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return core.Sheet{}, err
	}
	defer rows.Close()

	sheet := core.Sheet{Name: canonical, Header: columns}
	for rows.Next() {
		values := make([]string, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return core.Sheet{}, fmt.Errorf("scan %s: %w", canonical, err)
		}
		sheet.Rows = append(sheet.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return core.Sheet{}, fmt.Errorf("read %s: %w", canonical, err)
	}
	return sheet, nil
}

// selectQuery reads every column as text so numeric and date columns come
// back in the same form a spreadsheet cell would.
func selectQuery(table string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("coalesce(%s::text, '')", pgx.Identifier{c}.Sanitize())
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY 1",
		strings.Join(cols, ", "), pgx.Identifier{table}.Sanitize())
}
