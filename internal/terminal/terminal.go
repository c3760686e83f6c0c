// Package terminal is the cfo command line: ask questions, check a workbook,
// import it into another backend, and ask running servers to reload.
package terminal

import (
	"context"
	"io"
	"os"

	"cfocopilot/internal/amqp"
	"cfocopilot/internal/backend"
	"cfocopilot/internal/cli"
	"cfocopilot/internal/config"
	"cfocopilot/internal/log"

	"github.com/spf13/cobra"
)

// Publisher sends reload requests. amqp.Client implements it.
type Publisher interface {
	PublishReload(ctx context.Context, msg *amqp.ReloadMessage) error
	Close() error
}

// Options configure the CLI. Zero fields fall back to the real
// environment: config from env, stdout, the default backend factory and an
// AMQP publisher.
type Options struct {
	Output       io.Writer
	Logger       *log.Logger
	LoadConfig   func() (*config.Config, error)
	Factory      backend.Factory
	NewPublisher func(cfg *config.Config, logger *log.Logger) (Publisher, error)
}

type CLI struct {
	opts     Options
	reporter *Reporter
	rootCmd  *cobra.Command
}

func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = cli.LoadAndValidateConfig
	}
	if opts.Factory == nil {
		opts.Factory = backend.NewFactory(opts.Logger)
	}
	if opts.NewPublisher == nil {
		opts.NewPublisher = func(cfg *config.Config, logger *log.Logger) (Publisher, error) {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	c := &CLI{opts: opts, reporter: NewReporter(opts.Output)}
	c.rootCmd = c.newRootCmd()
	return c
}

func (c *CLI) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args for the next Execute.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cfo",
		Short:         "Ask finance questions about the monthly ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.opts.Output)

	cmd.AddCommand(c.newAskCmd())
	cmd.AddCommand(c.newCheckCmd())
	cmd.AddCommand(c.newImportCmd())
	cmd.AddCommand(c.newReloadCmd())
	return cmd
}

// loadConfig applies a --backend override on top of the environment.
func (c *CLI) loadConfig(backendOverride string) (*config.Config, error) {
	cfg, err := c.opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	if backendOverride != "" {
		cfg.DataBackend = backendOverride
	}
	return cfg, nil
}
