package terminal

import (
	"strings"

	"cfocopilot/internal/cli"
	"cfocopilot/internal/copilot"

	"github.com/spf13/cobra"
)

type askCmd struct {
	cli     *CLI
	entity  string
	backend string
	json    bool
}

func (c *CLI) newAskCmd() *cobra.Command {
	ac := &askCmd{cli: c}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question against the configured ledger",
		Example: `  cfo ask "What was June 2025 revenue vs budget?"
  cfo ask --entity EMEA "Show opex breakdown for last quarter"`,
		Args: cobra.MinimumNArgs(1),
		RunE: ac.run,
	}
	cmd.Flags().StringVar(&ac.entity, "entity", "", "Restrict figures to one entity")
	cmd.Flags().StringVar(&ac.backend, "backend", "", "Override DATA_BACKEND")
	cmd.Flags().BoolVar(&ac.json, "json", false, "Print the structured response as JSON")
	return cmd
}

func (ac *askCmd) run(cmd *cobra.Command, args []string) error {
	cfg, err := ac.cli.loadConfig(ac.backend)
	if err != nil {
		return err
	}
	app, err := cli.NewCopilot(cmd.Context(), cfg, ac.cli.opts.Logger, cli.Options{NoJanitor: true, Factory: ac.cli.opts.Factory})
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.Service.Ask(cmd.Context(), copilot.Request{Query: strings.Join(args, " "), Entity: ac.entity})
	if ac.json {
		return ac.cli.reporter.JSON(resp)
	}
	return ac.cli.reporter.Answer(resp)
}
