package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/agent"
	"github.com/klubi/grokterm/internal/config"
	"github.com/klubi/grokterm/internal/conversation"
	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/client"
)

var (
	maxHistory    int
	width         int
	showReasoning bool
)

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&maxHistory, "max-history", 0, "Non-system messages kept in context (default from config)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap replies at this column (0 = terminal width)")
	cmd.Flags().BoolVar(&showReasoning, "show-reasoning", false, "Display the model's reasoning stream")
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat with Grok.

Type a message and press enter. Type 'exit' or press Ctrl-D to quit.
Context is saved to the session on exit, including after Ctrl-C.`,
		Example: `  grokterm chat
  grokterm chat --session refactor --model grok-2-latest
  grokterm chat --max-history 40 --show-reasoning`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}
	addChatFlags(cmd)
	return cmd
}

func runChat(cmd *cobra.Command) error {
	ctx, stop := interruptible(cmd.Context())
	defer stop()

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}

	sess.runtime.PrintBanner()
	runErr := sess.runtime.Run(ctx, os.Stdin)
	sess.close(runErr)
	return nil
}

// session bundles everything one agent run needs.
type session struct {
	runtime *agent.Runtime
	store   store.Store
	logger  *zap.Logger
}

// openSession applies chat flag overrides, checks credentials, restores the
// saved context and wires the runtime.
func openSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Flags()
	if flags.Changed("max-history") {
		cfg.Chat.MaxHistory = maxHistory
	}
	if flags.Changed("width") {
		cfg.Chat.WrapWidth = width
	}
	if flags.Changed("show-reasoning") {
		cfg.Chat.ShowReasoning = showReasoning
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFromEnv()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	if _, ok := config.LookupModel(cfg.API.Model); !ok {
		logger.Warn("model is not a known preset", zap.String("model", cfg.API.Model))
	}

	systemPrompt, err := cfg.SystemInstruction()
	if err != nil {
		logger.Sync()
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	log := conversation.New(systemPrompt)
	log.Restore(st, cfg.Chat.Session, cfg.Chat.MaxHistory, logger)

	cl := client.New(cfg.API.BaseURL, apiKey, client.Options{
		MaxRetries: cfg.API.MaxRetries,
		Logger:     logger,
	})
	executor := agent.NewExecutor(cfg.Tools, logger)
	registry := agent.NewRegistry(cfg.Tools, executor, logger)

	rt := agent.NewRuntime(cl, registry, log, st, agent.Options{
		Model:         cfg.API.Model,
		MaxTokens:     cfg.API.MaxTokens,
		MaxHistory:    cfg.Chat.MaxHistory,
		WrapWidth:     wrapWidth(cfg.Chat.WrapWidth),
		ShowReasoning: cfg.Chat.ShowReasoning,
		Session:       cfg.Chat.Session,
	}, os.Stdout, logger)

	return &session{runtime: rt, store: st, logger: logger}, nil
}

// close releases the store. Persistence and close failures are reported but
// never turn into a failing exit status.
func (s *session) close(persistErr error) {
	err := multierr.Append(persistErr, s.store.Close())
	if err != nil {
		s.logger.Warn("shutdown incomplete", zap.Error(err))
	}
	s.logger.Sync()
}

// persistOnce is used by one-shot commands that never reach the loop's
// shutdown path.
func (s *session) persistOnce() error {
	if err := s.runtime.Persist(); err != nil {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Warning: failed to save context: %v\n", err)
		return err
	}
	return nil
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
