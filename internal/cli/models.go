package cli

import (
	"github.com/spf13/cobra"

	"github.com/klubi/grokterm/internal/config"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known model presets",
		Example: `  grokterm models
  grokterm models -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]interface{}, 0, len(config.ModelPresets))
			for _, p := range config.ModelPresets {
				items = append(items, p)
			}
			return printOutput(items, []string{"NAME", "LABEL", "CURRENT", "DESCRIPTION"}, func(v interface{}) []string {
				p := v.(config.ModelPreset)
				current := ""
				if p.Name == cfg.API.Model {
					current = "*"
				}
				return []string{p.Name, p.Label, current, p.Description}
			})
		},
	}
}
