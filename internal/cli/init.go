package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/klubi/grokterm/internal/config"
)

const configHeader = `# grokterm configuration.
# Every key is optional; missing keys keep their defaults.
# The API key is read from GROK_API_KEY (or XAI_API_KEY), never from here.
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Create a config.yaml populated with every default value.

The file is written to --config, or to ~/.grok-terminal/config.yaml.`,
		Example: `  grokterm init
  grokterm init --config ./grokterm.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}

			// Check if file already exists.
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("file %s already exists. Use --force to overwrite", path)
			}

			body, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, append([]byte(configHeader), body...), 0644); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			bold := color.New(color.FgCyan, color.Bold)
			bold.Fprintln(stdout, "grokterm initialized!")
			fmt.Fprintln(stdout)
			fmt.Fprintf(stdout, "  Config: %s\n", path)
			fmt.Fprintln(stdout)

			color.New(color.Bold).Fprintln(stdout, "Next steps:")
			fmt.Fprintln(stdout, "  1. Export your API key:")
			fmt.Fprintf(stdout, "     export %s='your-key-here'\n", config.EnvAPIKey)
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, "  2. Start chatting:")
			fmt.Fprintln(stdout, "     grokterm")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
