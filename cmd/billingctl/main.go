package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wawire/RentCollectionApp-sub000/internal/bootstrap"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/config"
	"github.com/wawire/RentCollectionApp-sub000/internal/infrastructure/logger"
)

var version = "1.0.0"

// cli carries the state shared by every subcommand
type cli struct {
	logLevel string
	audit    bool
	app      *bootstrap.App
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "billingctl",
		Short: "Operate the rent billing engine",
		Long: `billingctl runs billing operations against the rent collection database:
monthly invoice generation, late fees, payment allocation and reversal,
confirmation and rejection, balance recalculation and invoice voiding.

Configuration is read from config.toml and RENTPAY_* environment variables;
a .env file in the working directory is loaded first.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.audit, "audit", false, "Log every billing event raised by the command")

	root.AddCommand(
		c.generateCmd(),
		c.lateFeesCmd(),
		c.allocateCmd(),
		c.reverseCmd(),
		c.confirmCmd(),
		c.rejectCmd(),
		c.recalcCmd(),
		c.balanceCmd(),
		c.voidCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	base, err := logger.New(&logger.Config{
		Level:  c.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, base, bootstrap.Options{AuditEvents: c.audit})
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

func (c *cli) close() {
	if c.app == nil {
		return
	}
	defer logger.Sync(c.app.Logger)
	if err := c.app.Close(context.Background()); err != nil {
		c.app.Logger.Warn("Error releasing resources", zap.Error(err))
	}
	c.app = nil
}

func main() {
	_ = godotenv.Load()

	c := &cli{}
	err := newRootCmd(c).ExecuteContext(context.Background())
	c.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
