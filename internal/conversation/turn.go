// Package conversation defines the internal representation of a chat
// exchange: an ordered sequence of turns that the agent loop owns
// exclusively for the duration of one run. Conversion to the provider
// wire format happens at the openrouter package boundary.
package conversation

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry in a conversation. Exactly one role applies per
// turn; the constructors below keep the per-role fields consistent
// (system turns never carry attachments or tool calls, tool turns
// always reference the call they answer).
type Turn struct {
	Role Role

	// Text is the free-text content. May be empty for assistant turns
	// that only carry tool calls.
	Text string

	// Attachments are carried by user turns only, in presentation order.
	Attachments []Attachment

	// ToolCalls are carried by assistant turns only, in the order the
	// model emitted them.
	ToolCalls []ToolCall

	// ToolCallID and Result are set on tool turns: the identifier of
	// the originating call and its opaque, JSON-serializable outcome.
	ToolCallID string
	Result     any
}

// Attachment is an opaque content handle carried on a user turn.
// Content is resolved from the first available source: inline Data,
// then Path, then URL (which is passed through unembedded).
type Attachment struct {
	// MediaType is the MIME content type, if known. When empty, it is
	// inferred from Filename and ultimately defaults to image/jpeg.
	MediaType string

	// Filename is used for extension-based content-type inference.
	Filename string

	Data []byte
	Path string
	URL  string
}

// ToolCall is a single tool invocation requested by the model. ID is
// unique within one assistant turn and pairs the call with its result.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// System creates a system turn.
func System(text string) Turn {
	return Turn{Role: RoleSystem, Text: text}
}

// User creates a user turn with optional attachments.
func User(text string, attachments ...Attachment) Turn {
	return Turn{Role: RoleUser, Text: text, Attachments: attachments}
}

// Assistant creates an assistant turn with optional tool calls.
func Assistant(text string, calls ...ToolCall) Turn {
	return Turn{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

// ToolResult creates a tool turn answering the call with the given ID.
func ToolResult(callID string, result any) Turn {
	return Turn{Role: RoleTool, ToolCallID: callID, Result: result}
}
