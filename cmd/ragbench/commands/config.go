package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ragbench/internal/config"
)

func configCmd() *cobra.Command {
	var resolved bool
	cmd := &cobra.Command{
		Use:   "config [key=value ...]",
		Short: "Print the composed configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			composed, err := config.Compose(configDir, configName, args)
			if err != nil {
				return err
			}
			text := composed.YAML
			if resolved {
				data, err := yaml.Marshal(composed.Config)
				if err != nil {
					return err
				}
				text = string(data)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().BoolVar(&resolved, "resolved", false, "print the configuration with defaults applied")
	return cmd
}
