package terminal

import (
	"fmt"
	"os"

	"cfocopilot/internal/amqp"

	"github.com/spf13/cobra"
)

type reloadCmd struct {
	cli    *CLI
	reason string
}

func (c *CLI) newReloadCmd() *cobra.Command {
	rc := &reloadCmd{cli: c}
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask running servers to rebuild their ledger",
		Args:  cobra.NoArgs,
		RunE:  rc.run,
	}
	cmd.Flags().StringVar(&rc.reason, "reason", "manual", "Reason recorded with the request")
	return cmd
}

func (rc *reloadCmd) run(cmd *cobra.Command, _ []string) error {
	cfg, err := rc.cli.opts.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is not set; nothing to publish to")
	}
	pub, err := rc.cli.opts.NewPublisher(cfg, rc.cli.opts.Logger)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer pub.Close()

	msg := amqp.NewReloadMessage(rc.reason, requester())
	if err := pub.PublishReload(cmd.Context(), msg); err != nil {
		return fmt.Errorf("publish reload: %w", err)
	}
	return rc.cli.reporter.Reload(msg)
}

func requester() string {
	if u := os.Getenv("USER"); u != "" {
		return "cfo:" + u
	}
	return "cfo"
}
