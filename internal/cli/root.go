package cli

import (
	"github.com/spf13/cobra"

	"github.com/klubi/grokterm/internal/config"
)

var (
	configPath  string
	modelName   string
	sessionName string
	cfg         *config.Config
)

// NewRootCmd creates the top-level grokterm command with all subcommands.
// Running it without a subcommand starts an interactive chat.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grokterm",
		Short: "Tool-augmented Grok chat in your terminal",
		Long: `grokterm is an interactive terminal client for the xAI Grok API.

The model can read and write files, list directories and run shell
commands on your machine. Conversation context is saved between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// init writes the config file and must work without one.
			if cmd.Name() == "init" {
				return nil
			}
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.grok-terminal/config.yaml)")
	cmd.PersistentFlags().StringVar(&modelName, "model", "", "Model to use (see 'grokterm models')")
	cmd.PersistentFlags().StringVar(&sessionName, "session", "", "Session name for saved context (default: context)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
	addChatFlags(cmd)

	cmd.AddCommand(
		newChatCmd(),
		newAskCmd(),
		newModelsCmd(),
		newHistoryCmd(),
		newUICmd(),
		newInitCmd(),
	)

	return cmd
}

// loadConfig reads the config file and applies the persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		c.API.Model = modelName
	}
	if flags.Changed("session") {
		c.Chat.Session = sessionName
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}
