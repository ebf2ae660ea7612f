package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/conversation"
	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/chat"
)

const (
	replyHeader   = "Grok: "
	summaryWidth  = 70
	toolChoice    = "auto"
	remediation   = "Please check your connection and API key, then try again."
	thinkingLabel = "[Thinking] "
)

var (
	promptColor   = color.New(color.FgGreen, color.Bold)
	headerColor   = color.New(color.FgCyan, color.Bold)
	toolColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	thinkingColor = color.New(color.Faint)
)

// Completer opens a streamed chat completion.
type Completer interface {
	CompleteStream(ctx context.Context, req chat.Request) (chat.Stream, error)
}

// Options configures a Runtime.
type Options struct {
	Model         string
	MaxTokens     int
	MaxHistory    int // non-system messages kept before each request
	WrapWidth     int
	ShowReasoning bool
	Session       string
}

// Runtime drives the interactive agent loop: it reads user input, streams
// completions, dispatches requested tools and feeds their results back until
// the model answers without tool calls.
type Runtime struct {
	client Completer
	tools  *Registry
	log    *conversation.Log
	store  store.Store
	opts   Options
	out    io.Writer
	logger *zap.Logger
}

// NewRuntime creates a Runtime. The conversation log is owned by the runtime
// from here on.
func NewRuntime(client Completer, tools *Registry, log *conversation.Log, s store.Store, opts Options, out io.Writer, logger *zap.Logger) *Runtime {
	return &Runtime{
		client: client,
		tools:  tools,
		log:    log,
		store:  s,
		opts:   opts,
		out:    out,
		logger: logger,
	}
}

// PrintBanner writes the startup banner.
func (r *Runtime) PrintBanner() {
	headerColor.Fprintln(r.out, "=== Grok Terminal ===")
	fmt.Fprintf(r.out, "Connected to xAI API (model: %s)\n", r.opts.Model)
	fmt.Fprintln(r.out, "Type 'exit' to quit, or enter your message.")
	fmt.Fprintf(r.out, "The AI can use tools: %s.\n", strings.Join(r.tools.Names(), ", "))
	if n := r.log.Len(); n > 0 {
		fmt.Fprintf(r.out, "Restored %d messages from session %q.\n", n, r.opts.Session)
	}
	fmt.Fprintln(r.out)
}

// Run reads lines from in until "exit", end of input, or ctx is cancelled,
// then persists the conversation. The returned error is the persistence
// error, if any; failures inside a turn are shown to the user instead.
func (r *Runtime) Run(ctx context.Context, in io.Reader) error {
	lines := readLines(ctx, in)

	for {
		if ctx.Err() != nil {
			return r.shutdown()
		}
		promptColor.Fprint(r.out, "> ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return r.shutdown()
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(r.out)
			return r.shutdown()
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			return r.shutdown()
		}

		if err := r.RunTurn(ctx, input); err != nil && ctx.Err() == nil {
			r.logger.Debug("turn ended with error", zap.Error(err))
		}
	}
}

// readLines feeds lines from in to the returned channel from a single reader
// goroutine. The channel is closed at end of input.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// RunTurn appends input as a user message and loops request, stream and
// dispatch until the model replies without tool calls. A request or stream
// failure is reported to the user and returned; the partial turn is
// discarded.
func (r *Runtime) RunTurn(ctx context.Context, input string) error {
	if err := r.log.Append(chat.UserMessage(input)); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Truncate(r.opts.MaxHistory)

		reply, err := r.complete(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(r.out)
				return ctx.Err()
			}
			r.logger.Warn("completion failed", zap.Error(err))
			errorColor.Fprintf(r.out, "%sError connecting to API: %v\n", replyHeader, err)
			fmt.Fprintf(r.out, "%s\n\n", remediation)
			return err
		}

		calls := reply.ToolCalls
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.NewString()
				r.logger.Debug("assigned tool call id", zap.String("id", calls[i].ID))
			}
		}
		if err := r.log.Append(reply); err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		for _, call := range calls {
			toolColor.Fprintln(r.out, Summary(call, summaryWidth))
			result := r.tools.Dispatch(ctx, call)
			if err := r.log.Append(chat.ToolResultMessage(call.ID, result)); err != nil {
				return err
			}
		}
	}
}

// complete issues one streamed request and renders it as it arrives.
func (r *Runtime) complete(ctx context.Context) (chat.Message, error) {
	req := chat.Request{
		Model:      r.opts.Model,
		Messages:   r.log.Messages(),
		Tools:      r.tools.Definitions(),
		ToolChoice: toolChoice,
		MaxTokens:  r.opts.MaxTokens,
	}
	r.logger.Debug("requesting completion",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)

	stream, err := r.client.CompleteStream(ctx, req)
	if err != nil {
		return chat.Message{}, err
	}
	defer stream.Close()

	headerColor.Fprint(r.out, replyHeader)
	ww := NewWrapper(r.out, r.opts.WrapWidth)
	ww.SetColumn(len(replyHeader))

	var (
		acc      Accumulator
		thinking bool
	)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ww.Flush()
			fmt.Fprintln(r.out)
			return chat.Message{}, err
		}
		acc.Add(chunk)

		if chunk.Reasoning != "" && r.opts.ShowReasoning {
			if !thinking {
				thinkingColor.Fprint(r.out, thinkingLabel)
				thinking = true
			}
			thinkingColor.Fprint(r.out, chunk.Reasoning)
		}
		if chunk.Content != "" {
			if thinking {
				fmt.Fprint(r.out, "\n")
				ww.SetColumn(0)
				thinking = false
			}
			ww.WriteString(chunk.Content)
		}
	}
	ww.Flush()
	fmt.Fprint(r.out, "\n\n")

	if n := acc.Dropped(); n > 0 {
		r.logger.Warn("ignored tool call deltas with out-of-range index", zap.Int("count", n))
	}
	r.logger.Debug("completion finished",
		zap.String("finishReason", acc.FinishReason()),
		zap.Int("toolCalls", len(acc.ToolCalls())),
	)
	return acc.Message(), nil
}

// Persist saves the non-system part of the conversation.
func (r *Runtime) Persist() error {
	return r.log.Persist(r.store, r.opts.Session)
}

func (r *Runtime) shutdown() error {
	err := r.Persist()
	if err != nil {
		r.logger.Warn("could not save context", zap.String("session", r.opts.Session), zap.Error(err))
		errorColor.Fprintf(r.out, "Warning: failed to save context: %v\n", err)
	}
	fmt.Fprintln(r.out, "Goodbye!")
	return err
}
