package commands

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragbench/internal/app"
	"ragbench/internal/config"
	"ragbench/internal/logging"
	"ragbench/internal/tui"
)

func chatCmd() *cobra.Command {
	var questions []string
	cmd := &cobra.Command{
		Use:   "chat [key=value ...]",
		Short: "Chat interactively over an existing vector store",
		Long: `Open a chat over the vector store the configuration points at. Nothing
is embedded; run "ragbench embed" first. With -q the questions are answered
in order and printed instead of opening the terminal UI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			composed, err := config.Compose(configDir, configName, args)
			if err != nil {
				return err
			}
			cfg := composed.Config
			dir := app.RunDir(cfg.OutputRoot, appCtx.Now())
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(appCtx.Cwd, dir)
			}

			newLogger := logging.NewFileOnly
			if len(questions) > 0 {
				newLogger = logging.New
			}
			logger, closeLog, err := newLogger(cfg.Logging, dir)
			if err != nil {
				return err
			}
			defer closeLog()
			if err := config.Save(filepath.Join(dir, app.ConfigFile), cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			chat, closeChat, err := appCtx.OpenChat(ctx, composed, cfg.OutputFile(dir), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeChat(); err != nil {
					logger.Warn("closing chat components", zap.Error(err))
				}
			}()

			out := cmd.OutOrStdout()
			if len(questions) > 0 {
				for _, q := range questions {
					turn, err := chat.Converse(ctx, q)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
					for _, s := range turn.SourcePages() {
						fmt.Fprintf(out, "   %s %v\n", s.Document, s.Pages)
					}
				}
				return nil
			}

			title := cfg.LLM.Type + " / " + cfg.Embedding.Embedding.Type
			p := tea.NewProgram(tui.New(ctx, chat, title), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return err
			}
			fmt.Fprintf(out, "chat saved to %s\n", cfg.OutputFile(dir))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "answer this question without the terminal UI (repeatable)")
	return cmd
}
