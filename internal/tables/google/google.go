// Package google reads the financial tables from the tabs of a Google
// Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"cfocopilot/internal/core"
	"cfocopilot/internal/log"
	"cfocopilot/internal/tables"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ tables.Source = (*Client)(nil)

// Options configures the client. One of CredentialsJSON or
// CredentialsFile is required; GOOGLE_APPLICATION_CREDENTIALS is the
// fallback for the file.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Names           tables.SheetNames
}

// valueReader is the slice of the Sheets API the client uses.
type valueReader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
}

type sheetsValues struct{ svc *gsheet.Service }

func (s sheetsValues) Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type Client struct {
	values        valueReader
	spreadsheetID string
	names         tables.SheetNames
	logger        *log.Logger
}

func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, opts, logger), nil
}

func newClient(values valueReader, opts Options, logger *log.Logger) *Client {
	names := opts.Names
	if names == nil {
		names = tables.DefaultSheetNames()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		names:         names,
		logger:        logger.WithComponent(log.ComponentTables),
	}
}

// newSheetsService builds a read-only Sheets service from service account
// credentials.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	credentialsJSON := strings.TrimSpace(opts.CredentialsJSON)
	credentialsFile := strings.TrimSpace(opts.CredentialsFile)
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	switch {
	case credentialsJSON != "":
		raw = []byte(credentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	if logger != nil {
		logger.DebugContext(ctx, "Creating Google Sheets service",
			"credentials_size", len(raw),
			"scope", gsheet.SpreadsheetsReadonlyScope)
	}
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

// Load reads the four tabs concurrently.
func (c *Client) Load(ctx context.Context) (core.Workbook, error) {
	if c.values == nil {
		return core.Workbook{}, errors.New("sheets service not initialized")
	}

	grids := make([][][]any, len(core.SheetNames))
	found := make([]bool, len(core.SheetNames))
	g, gctx := errgroup.WithContext(ctx)
	for i, canonical := range core.SheetNames {
		tab := c.names.Resolve(canonical)
		g.Go(func() error {
			values, err := c.values.Values(gctx, c.spreadsheetID, quoteTab(tab))
			if err != nil {
				if isMissingRange(err) {
					return nil
				}
				return fmt.Errorf("read tab %q: %w", tab, err)
			}
			grids[i], found[i] = values, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.Workbook{}, err
	}

	var wb core.Workbook
	for i, canonical := range core.SheetNames {
		if !found[i] {
			if tables.Required[canonical] {
				return core.Workbook{}, fmt.Errorf("%w: tab %q in spreadsheet %s", tables.ErrSheetNotFound, c.names.Resolve(canonical), c.spreadsheetID)
			}
			c.logger.Warn("Optional tab missing, loading empty", log.FieldSheet, canonical)
			wb.Set(tables.EmptySheet(canonical))
			continue
		}
		wb.Set(core.NewSheet(canonical, toGrid(grids[i])))
	}
	return wb, nil
}

// quoteTab builds an A1 range covering a whole tab. Tab names with spaces
// or quotes need single quoting.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// isMissingRange reports whether the API rejected the range because the
// tab does not exist.
func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

func toGrid(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
