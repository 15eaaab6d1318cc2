// Package protocol defines the wire-level vocabulary shared by every
// capability call: message roles, messages, tool definitions, tool calls, and
// the capability protocols an agent can serve.
package protocol

import "strings"

// Protocol identifies a capability an agent exposes.
type Protocol string

const (
	// Chat is plain text generation over an ordered message list.
	Chat Protocol = "chat"
	// Tools is text generation that may return tool-call requests.
	Tools Protocol = "tools"
	// Structured is generation constrained to a JSON schema.
	Structured Protocol = "structured"
)

// ValidProtocols returns all supported protocols in declaration order.
func ValidProtocols() []Protocol {
	return []Protocol{Chat, Tools, Structured}
}

// IsValid reports whether p names a supported protocol. Matching is case
// sensitive.
func IsValid(p string) bool {
	for _, valid := range ValidProtocols() {
		if string(valid) == p {
			return true
		}
	}
	return false
}

// ProtocolStrings returns the supported protocols as a comma-separated list.
func ProtocolStrings() string {
	valid := ValidProtocols()
	names := make([]string, len(valid))
	for i, p := range valid {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
