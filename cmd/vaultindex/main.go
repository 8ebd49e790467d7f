// Command vaultindex is the operations CLI: recovery sweeps, manual ingestion,
// deletion, schema migration and status listings against the configured
// stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/app"
	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/logger"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vaultindex: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultindex",
		Short: "VaultIndex operations CLI",
		Long: `vaultindex runs maintenance tasks against the document store, the blob store and
the index configured through the environment (or a .env file).`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stdout")
	cmd.AddCommand(
		newFixStuckCmd(),
		newIngestCmd(),
		newDeleteCmd(),
		newMigrateCmd(),
		newStatusCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Records in memory would vanish with the process.
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func cliLogger(cfg *config.Config) *zap.Logger {
	if !verbose {
		return logger.Nop()
	}
	return logger.New("", cfg.IsProduction())
}

// openApp wires the services for one command. The caller closes it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, cliLogger(cfg))
}
