package providers

import "github.com/tailored-agentic-units/chattutor/core/protocol"

// ChatData contains the data needed to marshal a chat request.
type ChatData struct {
	Model    string
	Messages []protocol.Message
	Options  map[string]any
}

// ToolsData contains the data needed to marshal a tools request.
type ToolsData struct {
	Model    string
	Messages []protocol.Message
	Tools    []protocol.Tool
	Options  map[string]any
}

// StructuredData contains the data needed to marshal a structured decode
// request. Schema is a JSON Schema object describing the expected reply.
type StructuredData struct {
	Model    string
	Messages []protocol.Message
	Schema   map[string]any
	Options  map[string]any
}
