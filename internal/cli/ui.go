package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klubi/grokterm/internal/tui"
)

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ui",
		Aliases: []string{"browse"},
		Short:   "Browse saved sessions in a terminal UI",
		Long:    "Launch a terminal UI to browse, inspect and delete saved conversation contexts.",
		Example: `  grokterm ui
  grokterm ui --config ./grokterm.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			app := tui.NewApp(st, cfg.Chat.Session)
			if err := app.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}
}
