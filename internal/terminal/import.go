package terminal

import (
	"fmt"

	"cfocopilot/internal/backend"
	"cfocopilot/internal/core"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/storage"
	"cfocopilot/internal/tables/memory"

	"github.com/spf13/cobra"
)

type importCmd struct {
	cli  *CLI
	from string
	to   string

	xlsxPath string
	dataDir  string
	dbPath   string
}

func (c *CLI) newImportCmd() *cobra.Command {
	ic := &importCmd{cli: c}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a validated workbook from one backend into another",
		Long: `Loads the workbook from --from, validates it exactly as the server
would, and replaces the tables of --to with it. The default target is the
SQLite store, so "cfo import --from xlsx" seeds the sqlite backend from
data.xlsx.`,
		Args: cobra.NoArgs,
		RunE: ic.run,
	}
	cmd.Flags().StringVar(&ic.from, "from", "", "Source backend (default DATA_BACKEND)")
	cmd.Flags().StringVar(&ic.to, "to", string(backend.SQLiteBackend), "Target backend: sqlite, xlsx or memory")
	cmd.Flags().StringVar(&ic.xlsxPath, "xlsx", "", "Override XLSX_PATH")
	cmd.Flags().StringVar(&ic.dataDir, "dir", "", "Override DATA_DIR")
	cmd.Flags().StringVar(&ic.dbPath, "db", "", "Override SQLITE_DB_PATH")
	return cmd
}

func (ic *importCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := ic.cli.loadConfig(ic.from)
	if err != nil {
		return err
	}
	base, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if ic.xlsxPath != "" {
		base.XLSXPath = ic.xlsxPath
	}
	if ic.dataDir != "" {
		base.DataDirectory = ic.dataDir
	}
	if ic.dbPath != "" {
		base.SQLiteDBPath = ic.dbPath
	}

	target := base
	target.Type = backend.BackendType(ic.to)
	if target.Type == base.Type {
		return fmt.Errorf("source and target are both %s", base.Type)
	}

	src, err := ic.cli.opts.Factory.Create(ctx, base)
	if err != nil {
		return err
	}
	defer src.Close()

	wb, err := src.Source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s workbook: %w", base.Type, err)
	}
	l, err := ledger.Build(wb)
	if err != nil {
		return fmt.Errorf("workbook rejected, nothing imported: %w", err)
	}

	if err := ic.write(cmd, target, base.Type.String(), wb); err != nil {
		return err
	}
	return ic.cli.reporter.Import(base.Type.String(), target.Type.String(), l.Rows(), l.Stats())
}

// write stores wb in the target backend. A CSV directory may not exist yet,
// so the memory target writes files directly instead of opening a store.
func (ic *importCmd) write(cmd *cobra.Command, target backend.Config, origin string, wb core.Workbook) error {
	if target.Type == backend.MemoryBackend {
		if err := memory.WriteDir(target.DataDirectory, wb, target.Names); err != nil {
			return fmt.Errorf("write csv directory: %w", err)
		}
		return nil
	}

	dst, err := ic.cli.opts.Factory.Create(cmd.Context(), target)
	if err != nil {
		return err
	}
	defer dst.Close()
	if dst.Writer == nil {
		return fmt.Errorf("%s backend is read-only", target.Type)
	}
	if repo, ok := dst.Writer.(*storage.SQLiteRepository); ok {
		repo.WithOrigin(origin)
	}
	if err := dst.Writer.Write(cmd.Context(), wb); err != nil {
		return fmt.Errorf("write %s: %w", target.Type, err)
	}
	return nil
}
