package agent

import "errors"

var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrEmptyAgentName = errors.New("agent name is empty")
	ErrAgentExists    = errors.New("agent already registered")
	ErrInvalidConfig  = errors.New("invalid agent config")
	ErrUnsupported    = errors.New("protocol not supported by agent")
)
