// Package server exposes tutoring turns over Connect. Messages travel as
// google.protobuf.Struct so no generated code is needed, and each session
// admits one turn at a time.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/chattutor/kernel"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/store"
)

// Procedure paths.
const (
	ServiceName           = "chattutor.v1.TutorService"
	TurnProcedure         = "/" + ServiceName + "/Turn"
	ListSessionsProcedure = "/" + ServiceName + "/ListSessions"
)

var ErrSessionBusy = errors.New("a turn is already running for this session")

const (
	EventRequest  observability.EventType = "server.request"
	EventRejected observability.EventType = "server.rejected"
)

// Runtime is the part of the kernel the service drives.
type Runtime interface {
	Start(topic string) *session.State
	Resume(ctx context.Context, id string) (*session.State, error)
	Turn(ctx context.Context, st *session.State, utterance string) (*kernel.Result, error)
	Sessions(ctx context.Context) ([]store.Info, error)
}

// Service implements the Connect procedures.
type Service struct {
	runtime  Runtime
	observer observability.Observer

	mu   sync.Mutex
	busy map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithObserver sets the observer for request events.
func WithObserver(o observability.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// New creates a Service over rt.
func New(rt Runtime, opts ...Option) *Service {
	s := &Service{
		runtime:  rt,
		observer: observability.NoOpObserver{},
		busy:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the mount path and handler for the service.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(TurnProcedure, connect.NewUnaryHandler(TurnProcedure, s.turn, opts...))
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, s.listSessions, opts...))
	return "/" + ServiceName + "/", mux
}

// tryLock claims id for one turn. It never blocks.
func (s *Service) tryLock(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.busy[id]; taken {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Service) unlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}

func (s *Service) turn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	in := turnRequestFrom(req.Msg)
	if in.Utterance == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, kernel.ErrEmptyUtterance)
	}

	id := in.SessionID
	if id == "" {
		st := s.runtime.Start(in.Topic)
		id = st.ID
		if !s.tryLock(id) {
			return nil, connect.NewError(connect.CodeAborted, ErrSessionBusy)
		}
		defer s.unlock(id)
		return s.run(ctx, st, in.Utterance)
	}

	if !s.tryLock(id) {
		s.observer.OnEvent(ctx, observability.NewEvent(EventRejected, observability.LevelWarning, "server.Turn", map[string]any{
			"session": id,
		}))
		return nil, connect.NewError(connect.CodeAborted, ErrSessionBusy)
	}
	defer s.unlock(id)

	st, err := s.runtime.Resume(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return s.run(ctx, st, in.Utterance)
}

func (s *Service) run(ctx context.Context, st *session.State, utterance string) (*connect.Response[structpb.Struct], error) {
	s.observer.OnEvent(ctx, observability.NewEvent(EventRequest, observability.LevelVerbose, "server.Turn", map[string]any{
		"session": st.ID,
	}))

	res, err := s.runtime.Turn(ctx, st, utterance)
	if err != nil {
		return nil, toConnectError(err)
	}
	out, err := turnResponseFrom(res).toStruct()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func (s *Service) listSessions(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	infos, err := s.runtime.Sessions(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	out, err := sessionsToStruct(infos)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, store.ErrInvalidID), errors.Is(err, kernel.ErrEmptyUtterance):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, kernel.ErrSessionConcluded):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
