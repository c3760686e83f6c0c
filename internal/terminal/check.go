package terminal

import (
	"fmt"

	"cfocopilot/internal/backend"
	"cfocopilot/internal/ledger"

	"github.com/spf13/cobra"
)

type checkCmd struct {
	cli     *CLI
	backend string
}

func (c *CLI) newCheckCmd() *cobra.Command {
	cc := &checkCmd{cli: c}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the workbook without serving it",
		Args:  cobra.NoArgs,
		RunE:  cc.run,
	}
	cmd.Flags().StringVar(&cc.backend, "backend", "", "Override DATA_BACKEND")
	return cmd
}

func (cc *checkCmd) run(cmd *cobra.Command, _ []string) error {
	cfg, err := cc.cli.loadConfig(cc.backend)
	if err != nil {
		return err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := cc.cli.opts.Factory.Create(cmd.Context(), bcfg)
	if err != nil {
		return err
	}
	defer res.Close()

	wb, err := res.Source.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load workbook: %w", err)
	}
	l, err := ledger.Build(wb)
	if err != nil {
		return fmt.Errorf("workbook rejected: %w", err)
	}
	return cc.cli.reporter.Check(bcfg.Type.String(), l.Rows(), l.Stats())
}
