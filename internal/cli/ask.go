package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var errTurnFailed = errors.New("request failed")

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a single prompt and exit",
		Long: `Run one user turn through the agent loop without an interactive prompt.

The model may still call tools. The reply is streamed to stdout and the
turn is saved to the session like any other.`,
		Example: `  grokterm ask "summarize README.md"
  grokterm ask --session scratch -- list the go files under internal`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt must not be empty")
			}

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			sess, err := openSession(cmd)
			if err != nil {
				return err
			}

			turnErr := sess.runtime.RunTurn(ctx, prompt)
			sess.close(sess.persistOnce())
			if turnErr != nil {
				// Details were already printed by the runtime.
				return errTurnFailed
			}
			return nil
		},
	}
	addChatFlags(cmd)
	return cmd
}
