package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragbench/internal/app"
	"ragbench/internal/config"
)

func runCmd() *cobra.Command {
	var multirun bool
	cmd := &cobra.Command{
		Use:   "run [key=value ...]",
		Short: "Embed the source documents and ask the configured questions",
		Long: `Run one experiment. Overrides select group options (llm=openai) or set
values (retriever.top_k=8). With --multirun, comma-separated values are
swept and every combination runs in its own directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd, args, multirun, app.StageAll)
		},
	}
	cmd.Flags().BoolVarP(&multirun, "multirun", "m", false, "sweep comma-separated override values")
	return cmd
}

func runJobs(cmd *cobra.Command, overrides []string, multirun bool, stage app.Stage) error {
	start := appCtx.Now()
	jobs := [][]string{overrides}
	if multirun {
		jobs = config.ExpandSweep(overrides)
	}
	out := cmd.OutOrStdout()
	for n, job := range jobs {
		composed, err := config.Compose(configDir, configName, job)
		if err != nil {
			return err
		}
		dir := app.RunDir(composed.Config.OutputRoot, start)
		if multirun {
			dir = app.MultirunDir(start, n)
			fmt.Fprintf(out, "[%d] %v\n", n, job)
		}
		res, err := appCtx.Run(cmd.Context(), composed, dir, stage)
		if err != nil {
			return fmt.Errorf("run %d: %w", n, err)
		}
		fmt.Fprintf(out, "run dir: %s\nchunks embedded: %d\n", res.RunDir, res.Embedded)
		if res.Report != "" {
			fmt.Fprintf(out, "questions answered: %d\nreport: %s\n", res.Turns, res.Report)
		}
	}
	return nil
}
