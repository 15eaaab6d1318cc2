package kernel

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/chattutor/router"
)

var (
	ErrEmptyUtterance   = errors.New("utterance is empty")
	ErrNilState         = errors.New("session state is nil")
	ErrNoWorker         = errors.New("no worker for stage")
	ErrSessionConcluded = errors.New("session has concluded")
)

// TurnError captures where a turn failed. The caller's state is unchanged.
type TurnError struct {
	SessionID string
	Stage     router.Stage
	Path      []router.Stage
	Err       error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at stage %s: %v", e.Stage, e.Err)
}

// Unwrap enables error unwrapping for errors.Is and errors.As.
func (e *TurnError) Unwrap() error {
	return e.Err
}
