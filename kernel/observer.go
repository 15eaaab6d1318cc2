package kernel

import "github.com/tailored-agentic-units/chattutor/observability"

// Kernel event types emitted during a turn.
const (
	EventTurnStart     observability.EventType = "kernel.turn.start"
	EventTurnComplete  observability.EventType = "kernel.turn.complete"
	EventStageStart    observability.EventType = "kernel.stage.start"
	EventStageComplete observability.EventType = "kernel.stage.complete"
	EventTransition    observability.EventType = "kernel.stage.transition"
	EventError         observability.EventType = "kernel.error"
	EventResume        observability.EventType = "kernel.session.resume"
)
