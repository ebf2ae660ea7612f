package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/chat"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Inspect and manage saved conversation context",
	}
	cmd.AddCommand(
		newHistoryShowCmd(),
		newHistorySessionsCmd(),
		newHistoryClearCmd(),
	)
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session]",
		Short: "Print the saved context of a session",
		Example: `  grokterm history show
  grokterm history show refactor -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.Chat.Session
			if len(args) > 0 {
				name = args[0]
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			msgs, err := st.Load(name)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no saved context for session %q", name)
			}
			if err != nil {
				return err
			}

			items := make([]interface{}, 0, len(msgs))
			for _, m := range msgs {
				items = append(items, m)
			}
			if len(items) == 0 && (outputFormat == "" || outputFormat == "table") {
				fmt.Fprintf(stdout, "Session %q is empty.\n", name)
				return nil
			}

			i := 0
			return printOutput(items, messageHeaders(), func(v interface{}) []string {
				i++
				return messageToRow(i, v.(chat.Message))
			})
		},
	}
}

func messageHeaders() []string {
	return []string{"#", "ROLE", "CONTENT"}
}

func messageToRow(i int, m chat.Message) []string {
	return []string{strconv.Itoa(i), string(m.Role), abbreviate(describeMessage(m), 100)}
}

// describeMessage renders a one-line view of m, naming requested tools when
// the message carries no text.
func describeMessage(m chat.Message) string {
	switch {
	case len(m.ToolCalls) > 0:
		names := make([]string, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			names = append(names, tc.Function.Name)
		}
		calls := "-> " + strings.Join(names, ", ")
		if m.Content != "" {
			return m.Content + " " + calls
		}
		return calls
	case m.Role == chat.RoleTool:
		return "[" + m.ToolCallID + "] " + m.Content
	default:
		return m.Content
	}
}

func newHistorySessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List sessions with saved context",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			infos, err := st.List()
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if len(infos) == 0 && (outputFormat == "" || outputFormat == "table") {
				fmt.Fprintln(stdout, "No saved sessions.")
				return nil
			}

			items := make([]interface{}, 0, len(infos))
			for _, info := range infos {
				items = append(items, info)
			}
			return printOutput(items, []string{"NAME", "MESSAGES", "AGE"}, func(v interface{}) []string {
				info := v.(store.SessionInfo)
				name := info.Name
				if name == cfg.Chat.Session {
					name += " (current)"
				}
				return []string{name, strconv.Itoa(info.Messages), formatAge(info.UpdatedAt)}
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [session]",
		Short: "Delete the saved context of a session",
		Example: `  grokterm history clear
  grokterm history clear refactor`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.Chat.Session
			if len(args) > 0 {
				name = args[0]
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(name); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no saved context for session %q", name)
				}
				return err
			}
			color.New(color.FgGreen).Fprintf(stdout, "Cleared session %s\n", name)
			return nil
		},
	}
}
