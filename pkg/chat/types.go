// Package chat defines the message and streaming types exchanged with an
// OpenAI-compatible chat-completions endpoint.
package chat

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// -------------------------------------------------------
// Messages
// -------------------------------------------------------

// Message is one entry of the conversation log. Its JSON form is both the
// wire format and the persisted context format.
type Message struct {
	Role       Role       `json:"role" yaml:"role"`
	Content    string     `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

// ToolCall is a complete tool invocation requested by the assistant.
// Function.Arguments holds the raw argument text as streamed; it is only
// expected to be valid JSON once the turn's stream has finished.
type ToolCall struct {
	ID       string       `json:"id" yaml:"id"`
	Type     string       `json:"type" yaml:"type"`
	Function FunctionCall `json:"function" yaml:"function"`
}

// FunctionCall names the tool and carries its raw arguments.
type FunctionCall struct {
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// ToolTypeFunction is the only tool type the endpoint issues.
const ToolTypeFunction = "function"

// SystemMessage, UserMessage and ToolResultMessage build the common messages.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// -------------------------------------------------------
// Streaming
// -------------------------------------------------------

// ToolCallDelta is a partial update to the tool call at Index. Fragments for
// one index arrive in emission order; different indices may interleave.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Chunk is one decoded unit of a streamed completion.
type Chunk struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// Stream is a pull-based, finite, non-restartable sequence of chunks.
// Recv returns io.EOF once the sequence is exhausted.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// -------------------------------------------------------
// Requests and tool schemas
// -------------------------------------------------------

// Request is a streamed completion request.
type Request struct {
	Model      string           `json:"model"`
	Messages   []Message        `json:"messages"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
	Stream     bool             `json:"stream"`
	MaxTokens  int              `json:"max_tokens,omitempty"`
}

// ToolDefinition advertises one tool to the endpoint.
type ToolDefinition struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema describes a tool's name, purpose and parameters.
type FunctionSchema struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  ParametersSchema `json:"parameters"`
}

// ParametersSchema is the JSON-schema object describing tool arguments.
type ParametersSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single tool argument.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}
