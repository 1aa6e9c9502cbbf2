package commands

import (
	"github.com/spf13/cobra"

	"ragbench/internal/app"
)

func embedCmd() *cobra.Command {
	var multirun bool
	cmd := &cobra.Command{
		Use:   "embed [key=value ...]",
		Short: "Only build the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd, args, multirun, app.StageEmbed)
		},
	}
	cmd.Flags().BoolVarP(&multirun, "multirun", "m", false, "sweep comma-separated override values")
	return cmd
}
