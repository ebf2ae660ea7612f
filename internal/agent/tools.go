// Package agent implements the tool-augmented chat loop: stream
// accumulation, the tool catalog and its executors, and the runtime that
// drives request, stream and dispatch rounds.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/config"
	"github.com/klubi/grokterm/pkg/chat"
)

// ToolName is the wire-level name of a built-in tool.
type ToolName string

const (
	ToolReadFile      ToolName = "read_file"
	ToolWriteFile     ToolName = "write_file"
	ToolListDirectory ToolName = "list_directory"
	ToolFindFiles     ToolName = "find_files"
	ToolBash          ToolName = "bash"
	ToolGit           ToolName = "git"
	ToolBrew          ToolName = "brew"
	ToolPython        ToolName = "python"
	ToolPip           ToolName = "pip"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolDef describes a tool the agent can use and how to run it.
type ToolDef struct {
	Name        ToolName
	Description string
	Params      []Param
	Run         func(ctx context.Context, args Args) string
}

// Definition returns the schema advertised to the endpoint.
func (t *ToolDef) Definition() chat.ToolDefinition {
	props := make(map[string]chat.PropertySchema, len(t.Params))
	required := []string{}
	for _, p := range t.Params {
		props[p.Name] = chat.PropertySchema{Type: p.Type, Description: p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return chat.ToolDefinition{
		Type: chat.ToolTypeFunction,
		Function: chat.FunctionSchema{
			Name:        string(t.Name),
			Description: t.Description,
			Parameters: chat.ParametersSchema{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// Args is a decoded tool argument object.
type Args map[string]any

// String returns the non-empty value of key, stringifying non-string JSON
// values.
func (a Args) String(key string) (string, bool) {
	v, ok := a.Raw(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Raw returns the value of key, which may be empty. Absent and null values
// report false.
func (a Args) Raw(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func missingParam(name string) string {
	return fmt.Sprintf("Error: Missing '%s' parameter", name)
}

// Registry is the closed catalog of built-in tools.
type Registry struct {
	tools     map[ToolName]*ToolDef
	order     []ToolName
	maxOutput int
	logger    *zap.Logger
}

// NewRegistry builds the catalog, wiring the shell-based tools to exec.
func NewRegistry(cfg config.ToolsConfig, exec *Executor, logger *zap.Logger) *Registry {
	r := &Registry{
		tools:     make(map[ToolName]*ToolDef),
		maxOutput: cfg.MaxOutputBytes,
		logger:    logger,
	}

	r.register(&ToolDef{
		Name:        ToolReadFile,
		Description: "Read and return the contents of a file from the local filesystem",
		Params: []Param{
			{Name: "filepath", Type: "string", Description: "Absolute or relative path to the file to read", Required: true},
		},
		Run: readFile,
	})
	r.register(&ToolDef{
		Name:        ToolWriteFile,
		Description: "Write content to a file on the local filesystem, overwriting if it exists",
		Params: []Param{
			{Name: "filepath", Type: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
		},
		Run: writeFile,
	})
	r.register(&ToolDef{
		Name:        ToolListDirectory,
		Description: "List contents of a directory with file/directory type and sizes",
		Params: []Param{
			{Name: "dirpath", Type: "string", Description: "Path to the directory to list (default: current directory)"},
		},
		Run: listDirectory,
	})
	r.register(&ToolDef{
		Name:        ToolFindFiles,
		Description: "Find files matching a glob pattern such as **/*.go",
		Params: []Param{
			{Name: "pattern", Type: "string", Description: "Glob pattern, ** matches any number of directories", Required: true},
			{Name: "root", Type: "string", Description: "Directory to search from (default: current directory)"},
		},
		Run: findFiles,
	})
	r.register(&ToolDef{
		Name:        ToolBash,
		Description: "Execute a bash command and return stdout, stderr, and exit code",
		Params: []Param{
			{Name: "command", Type: "string", Description: "Bash command to execute", Required: true},
		},
		Run: func(ctx context.Context, args Args) string {
			command, ok := args.String("command")
			if !ok {
				return missingParam("command")
			}
			return exec.Run(ctx, command)
		},
	})

	r.register(prefixedCommand(exec, ToolGit, "git", "Execute git commands for version control operations", "Git command arguments"))
	r.register(prefixedCommand(exec, ToolBrew, "brew", "Execute Homebrew commands for macOS package management", "Brew command arguments"))
	r.register(prefixedCommand(exec, ToolPython, "python3", "Execute Python scripts or modules", "Python command arguments"))
	r.register(prefixedCommand(exec, ToolPip, "pip3", "Execute pip commands for Python package management", "Pip command arguments"))

	return r
}

// prefixedCommand specializes the shell tool to a fixed program.
func prefixedCommand(exec *Executor, name ToolName, program, description, argsDescription string) *ToolDef {
	return &ToolDef{
		Name:        name,
		Description: description,
		Params: []Param{
			{Name: "args", Type: "string", Description: argsDescription, Required: true},
		},
		Run: func(ctx context.Context, args Args) string {
			a, ok := args.String("args")
			if !ok {
				return missingParam("args")
			}
			return exec.Run(ctx, program+" "+a)
		},
	}
}

func (r *Registry) register(t *ToolDef) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, n := range r.order {
		names[i] = string(n)
	}
	return names
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*ToolDef, bool) {
	t, ok := r.tools[ToolName(name)]
	return t, ok
}

// Definitions returns the catalog advertised with every request.
func (r *Registry) Definitions() []chat.ToolDefinition {
	defs := make([]chat.ToolDefinition, 0, len(r.order))
	for _, n := range r.order {
		defs = append(defs, r.tools[n].Definition())
	}
	return defs
}

// Dispatch runs call and returns exactly one text result. Malformed
// arguments and unknown tools become error text; nothing is returned as an
// error.
func (r *Registry) Dispatch(ctx context.Context, call chat.ToolCall) string {
	name := call.Function.Name

	args, err := parseArgs(call.Function.Arguments)
	if err != nil {
		r.logger.Debug("invalid tool arguments",
			zap.String("tool", name),
			zap.String("id", call.ID),
			zap.Error(err),
		)
		return "Error: Invalid arguments JSON"
	}

	tool, ok := r.Lookup(name)
	if !ok {
		r.logger.Debug("unknown tool requested", zap.String("tool", name), zap.String("id", call.ID))
		return fmt.Sprintf("Error: Unknown tool '%s'", name)
	}

	r.logger.Debug("dispatching tool", zap.String("tool", name), zap.String("id", call.ID))
	result := r.run(ctx, tool, args)
	if result == "" {
		result = "(no output)"
	}
	return truncateOutput(result, r.maxOutput)
}

// run shields the loop from a panicking executor.
func (r *Registry) run(ctx context.Context, tool *ToolDef, args Args) (result string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", zap.String("tool", string(tool.Name)), zap.Any("panic", p))
			result = fmt.Sprintf("Error: tool '%s' failed: %v", tool.Name, p)
		}
	}()
	return tool.Run(ctx, args)
}

// parseArgs decodes raw as a JSON object; blank input is an empty object.
func parseArgs(raw string) (Args, error) {
	if strings.TrimSpace(raw) == "" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, fmt.Errorf("arguments are not an object")
	}
	return args, nil
}

func truncateOutput(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return fmt.Sprintf("%s\n... [truncated %d bytes]", s[:cut], len(s)-cut)
}

// Summary renders the one-line echo printed before a tool runs, e.g.
// "[bash: command='ls -la']", truncated to width columns.
func Summary(call chat.ToolCall, width int) string {
	var formatted string
	if args, err := parseArgs(call.Function.Arguments); err == nil {
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s='%v'", k, args[k]))
		}
		formatted = strings.Join(parts, ", ")
	} else {
		formatted = call.Function.Arguments
	}
	formatted = strings.Join(strings.Fields(formatted), " ")

	msg := []rune(fmt.Sprintf("[%s: %s]", call.Function.Name, formatted))
	if width > 3 && len(msg) > width {
		return string(msg[:width-3]) + "..."
	}
	return string(msg)
}
