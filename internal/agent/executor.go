package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/config"
)

// Executor runs shell commands on behalf of tools and renders the outcome
// as a single text result.
type Executor struct {
	shell   string // interpreter invoked as `<shell> -c <command>`
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an Executor using the configured shell, falling back
// to "sh" when it cannot be found on PATH. A zero timeout disables the limit.
func NewExecutor(cfg config.ToolsConfig, logger *zap.Logger) *Executor {
	shell := cfg.Shell
	if shell == "" {
		shell = "bash"
	}
	if _, err := exec.LookPath(shell); err != nil {
		logger.Debug("shell not found, falling back to sh", zap.String("shell", shell))
		shell = "sh"
	}
	return &Executor{
		shell:   shell,
		timeout: time.Duration(cfg.CommandTimeout) * time.Second,
		logger:  logger,
	}
}

// Run executes command and returns trimmed stdout, then trimmed stderr on
// its own line when non-empty, then the exit status. It never returns an
// error; failures are described in the text.
func (e *Executor) Run(ctx context.Context, command string) string {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("executing shell command",
		zap.String("shell", e.shell),
		zap.Int("commandLen", len(command)),
	)

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)

	// Keep credentials out of model-driven subprocesses.
	cmd.Env = filterEnv(os.Environ(), config.EnvAPIKey, config.EnvAPIKeyFallback)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Background children may hold the pipes open after the shell is killed.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil && cmd.ProcessState == nil {
		e.logger.Warn("shell command failed to start", zap.Error(err))
		return fmt.Sprintf("Error executing command: %v", err)
	}
	exitCode := cmd.ProcessState.ExitCode()

	output := strings.TrimSpace(stdout.String())
	if errText := strings.TrimSpace(stderr.String()); errText != "" {
		output += "\n" + errText
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		output += fmt.Sprintf("\n[Timed out after %s]", e.timeout)
	}
	// The shell exited but a background child kept stdout or stderr open.
	if errors.Is(err, exec.ErrWaitDelay) {
		e.logger.Debug("background process still holds output", zap.String("shell", e.shell))
		output += "\n[Background process still holds output]"
	}

	e.logger.Debug("shell command completed",
		zap.Int("exitCode", exitCode),
		zap.Duration("elapsed", elapsed),
		zap.Int("outputLen", len(output)),
	)

	return fmt.Sprintf("%s\n[Exit code: %d]", output, exitCode)
}

// filterEnv returns a copy of env with the given keys removed.
func filterEnv(env []string, keys ...string) []string {
	result := make([]string, 0, len(env))
outer:
	for _, e := range env {
		for _, key := range keys {
			if strings.HasPrefix(e, key+"=") {
				continue outer
			}
		}
		result = append(result, e)
	}
	return result
}
