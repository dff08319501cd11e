// Package llm defines the model-invocation collaborator boundary and its
// message types, plus a Gemini-backed implementation and a mock.
package llm

import "context"

// Role is a conversation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind distinguishes the content shapes a message part can carry.
type PartKind int

const (
	PartText PartKind = iota
	PartBinary
	PartToolCall
	PartToolResult
)

// Part is one piece of message content.
type Part struct {
	Kind PartKind

	Text string

	// Binary payload (PDF pages, images) with its declared mime type.
	Data []byte
	MIME string

	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// Message is one conversation turn.
type Message struct {
	Role  Role
	Parts []Part
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of dispatching one tool call.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// ToolDefinition describes a tool made available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Params maps parameter name to a JSON-schema-ish description:
	// {"type": "string", "description": "...", "required": true}.
	Params map[string]ParamSpec
}

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string // "string", "number", "boolean"
	Description string
	Required    bool
}

// Request is one fully assembled model invocation.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Think       bool
	Tools       []ToolDefinition
}

// Response is what a single invocation produced. A response carries text,
// tool calls, or both; an empty response with no calls is a final answer
// with no content.
type Response struct {
	Text      string
	Reasoning string // think-mode reasoning, may be empty
	ToolCalls []ToolCall
}

// Invoker is the model-invocation collaborator. Implementations must
// honour ctx cancellation and deadlines.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}
