// Package commands implements the stepls commands.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/config"
	"github.com/robert-malhotra/go-stepio/internal/logger"
	"github.com/robert-malhotra/go-stepio/stepio"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stepls",
	Short: "Inspect and feed stepio datasets",
	Long: `stepls lists the steps, variables and blocks of stepio datasets and
prints their values.

The catalog and the transports come from the configuration file
(--config, default ~/.config/stepio/config.yaml) and STEPIO_* environment
variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		if err := logger.Init(c.Logging); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stepls %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// openCatalog opens the configured catalog. The caller closes it.
func openCatalog() (catalog.Catalog, error) {
	cat, err := config.CreateCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return cat, nil
}

// engineOptions builds fresh transports and returns the options of one
// engine over cat.
func engineOptions(ctx context.Context, cat catalog.Catalog) ([]stepio.EngineOption, error) {
	ts, err := config.CreateTransports(ctx, cfg.Transports)
	if err != nil {
		return nil, err
	}
	opts := []stepio.EngineOption{
		stepio.WithCatalog(cat),
		stepio.WithTransports(ts...),
		stepio.WithPollInterval(cfg.Engine.PollInterval),
	}
	if cfg.Engine.Operators != "" {
		opts = append(opts, stepio.WithOperators(cfg.Engine.Operators))
	}
	return opts, nil
}
