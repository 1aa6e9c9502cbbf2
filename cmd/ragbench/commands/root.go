// Package commands implements the ragbench command line.
package commands

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragbench/internal/app"
)

var (
	configDir  string
	configName string
	appCtx     *app.App
)

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "ragbench",
		Short:         "Benchmark retrieval-augmented chat setups over a folder of documents",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; API keys may already be in the environment.
			_ = godotenv.Load()
			a, err := app.New()
			if err != nil {
				return err
			}
			appCtx = a
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config-dir", "conf", "directory holding the root config and its groups")
	root.PersistentFlags().StringVar(&configName, "config-name", "config", "root config file name without .yaml")

	root.AddCommand(runCmd(), embedCmd(), chatCmd(), configCmd())
	return root
}
