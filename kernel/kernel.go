// Package kernel runs tutoring turns. It initializes every subsystem from
// configuration and drives one turn through planning, routed workers and
// aggregation.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(&cfg)
//	st := k.Start("Linear Algebra")
//	result, err := k.Turn(ctx, st, "What is an eigenvector?")
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/chattutor/agent"
	"github.com/tailored-agentic-units/chattutor/aggregator"
	"github.com/tailored-agentic-units/chattutor/compaction"
	"github.com/tailored-agentic-units/chattutor/core/protocol"
	"github.com/tailored-agentic-units/chattutor/memory"
	"github.com/tailored-agentic-units/chattutor/observability"
	"github.com/tailored-agentic-units/chattutor/plan"
	"github.com/tailored-agentic-units/chattutor/router"
	"github.com/tailored-agentic-units/chattutor/session"
	"github.com/tailored-agentic-units/chattutor/store"
	"github.com/tailored-agentic-units/chattutor/tools"
	"github.com/tailored-agentic-units/chattutor/tools/search"
	"github.com/tailored-agentic-units/chattutor/workers"
)

// Result holds the outcome of a turn.
type Result struct {
	State        *session.State     // Session after the turn.
	Appended     []protocol.Message // Assistant message(s) added by the turn.
	Plan         *plan.Plan         // Plan that routed the turn; nil when planning was skipped.
	Path         []router.Stage     // Stages visited, Planning through Aggregating.
	Location     string             // Where the snapshot was saved.
	NoteLocation string             // Where the closing note was saved, if any.
	Compressed   bool               // Whether the summary advanced this turn.
}

// Reply returns the text of the turn's reply.
func (r *Result) Reply() string {
	if r == nil || len(r.Appended) == 0 {
		return ""
	}
	return r.Appended[len(r.Appended)-1].Content
}

// Option configures a Kernel after config-driven initialization.
// Applied by New after cold start; overrides replace config-created defaults.
type Option func(*Kernel)

// WithAgent overrides the agent for one role.
func WithAgent(role string, a agent.Agent) Option {
	return func(k *Kernel) { k.agents[role] = a }
}

// WithAgents uses a for every role.
func WithAgents(a agent.Agent) Option {
	return func(k *Kernel) {
		for _, role := range Roles() {
			k.agents[role] = a
		}
	}
}

// WithRegistry overrides the config-created agent registry.
func WithRegistry(r *agent.Registry) Option {
	return func(k *Kernel) { k.registry = r }
}

// WithToolExecutor overrides the config-created tool executor. A nil
// executor disables tool augmentation.
func WithToolExecutor(e tools.Executor) Option {
	return func(k *Kernel) {
		k.tools = e
		k.toolsSet = true
	}
}

// WithMemoryStore overrides the config-created key-value backend.
func WithMemoryStore(s memory.Store) Option {
	return func(k *Kernel) { k.backend = s }
}

// WithSessionStore overrides session persistence entirely.
func WithSessionStore(s store.SessionStore) Option {
	return func(k *Kernel) { k.store = s }
}

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithLogger uses an slog observer over logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) { k.observer = observability.NewSlogObserver(logger) }
}

// WithClock overrides the time source of the config-created session store.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

// Kernel is the tutoring runtime.
type Kernel struct {
	cfg      Config
	registry *agent.Registry
	agents   map[string]agent.Agent
	tools    tools.Executor
	toolsSet bool
	backend  memory.Store
	store    store.SessionStore
	observer observability.Observer
	now      func() time.Time
	closers  []io.Closer

	planner    *plan.Planner
	workers    map[router.Stage]workers.Worker
	aggregator *aggregator.Aggregator
}

// New creates a Kernel from configuration. Subsystems are initialized from
// their config sections; options applied first can replace any of them.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	reg := agent.NewRegistry()
	for _, role := range Roles() {
		if err := reg.Register(role, cfg.RoleConfig(role)); err != nil {
			return nil, fmt.Errorf("failed to register agent %q: %w", role, err)
		}
	}

	k := &Kernel{
		cfg:      *cfg,
		registry: reg,
		agents:   make(map[string]agent.Agent),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(k)
	}

	if err := k.init(); err != nil {
		k.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kernel) init() error {
	if k.observer == nil {
		obs, err := newObserver(&k.cfg)
		if err != nil {
			return fmt.Errorf("failed to create observer: %w", err)
		}
		k.observer = obs
	}

	if !k.toolsSet {
		exec, err := newToolExecutor(&k.cfg)
		if err != nil {
			return fmt.Errorf("failed to register tools: %w", err)
		}
		k.tools = exec
	}

	if k.store == nil {
		s, err := k.newSessionStore()
		if err != nil {
			return fmt.Errorf("failed to create session store: %w", err)
		}
		k.store = s
	}

	tutor, err := k.agent(RoleTutor)
	if err != nil {
		return err
	}
	planner, err := k.agent(RolePlanner)
	if err != nil {
		return err
	}
	compressor, err := k.agent(RoleCompressor)
	if err != nil {
		return err
	}

	if _, overridden := k.agents[RoleTutor]; !overridden && k.tools != nil {
		if ok, _ := k.registry.Supports(RoleTutor, protocol.Tools); !ok {
			k.tools = nil
		}
	}

	k.planner = plan.NewPlanner(planner, plan.WithObserver(k.observer))

	wopts := []workers.Option{workers.WithObserver(k.observer), workers.WithTools(k.tools)}
	k.workers = map[router.Stage]workers.Worker{
		router.Tutoring:    workers.NewTutor(tutor, wopts...),
		router.Judging:     workers.NewJudge(tutor, wopts...),
		router.Inquiring:   workers.NewInquiry(tutor, wopts...),
		router.Summarizing: workers.NewSummary(tutor, wopts...),
	}

	k.aggregator = aggregator.New(
		tutor,
		compaction.New(compressor, compaction.WithObserver(k.observer)),
		k.store,
		aggregator.WithObserver(k.observer),
	)
	return nil
}

func (k *Kernel) agent(role string) (agent.Agent, error) {
	if a, ok := k.agents[role]; ok {
		return a, nil
	}
	if err := k.registry.Require(role, roleProtocols[role]...); err != nil {
		return nil, err
	}
	a, err := k.registry.Get(role)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}

func (k *Kernel) newSessionStore() (store.SessionStore, error) {
	opts := []store.Option{store.WithClock(k.now)}

	if k.backend == nil {
		backend, closer, err := memory.NewStore(&k.cfg.Memory)
		if err != nil {
			return nil, err
		}
		k.backend = backend
		k.closers = append(k.closers, closer)
		if k.cfg.Memory.Backend == "" || k.cfg.Memory.Backend == memory.BackendFile {
			opts = append(opts, store.WithLocation(k.cfg.Memory.Path))
		}
	}

	var s store.SessionStore = store.New(k.backend, opts...)
	if k.cfg.Cache.TTL > 0 {
		s = store.NewCached(s, time.Duration(k.cfg.Cache.TTL), time.Duration(k.cfg.Cache.Cleanup))
	}
	return s, nil
}

// newToolExecutor returns the global registry with the search tool added
// when a search key is configured. With no tools registered it returns nil.
func newToolExecutor(cfg *Config) (tools.Executor, error) {
	reg := tools.Global()
	if cfg.Search.APIKey != "" {
		if _, exists := reg.Get(search.ToolName); !exists {
			if err := search.New(cfg.Search).Register(reg); err != nil {
				return nil, err
			}
		}
	}
	if len(reg.List()) == 0 {
		return nil, nil
	}
	return reg, nil
}

func newObserver(cfg *Config) (observability.Observer, error) {
	if cfg.Observer != "zap" {
		return observability.GetObserver(cfg.Observer)
	}
	logger, err := observability.NewZapLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return observability.NewZapObserver(logger), nil
}

// Registry returns the kernel's agent registry.
func (k *Kernel) Registry() *agent.Registry {
	return k.registry
}

// Observer returns the observer the kernel reports to.
func (k *Kernel) Observer() observability.Observer {
	return k.observer
}

// Store returns the session store.
func (k *Kernel) Store() store.SessionStore {
	return k.store
}

// Close releases backend resources and flushes the observer.
func (k *Kernel) Close() error {
	var errs []error
	for _, c := range k.closers {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	k.closers = nil
	if s, ok := k.observer.(interface{ Sync() error }); ok {
		// Syncing stderr fails on some platforms; it is not actionable.
		_ = s.Sync()
	}
	return errors.Join(errs...)
}

// Start creates a new session on topic, falling back to the configured
// default topic.
func (k *Kernel) Start(topic string) *session.State {
	return session.NewFromConfig(&k.cfg.Session, topic)
}

// Resume loads a saved session by id.
func (k *Kernel) Resume(ctx context.Context, id string) (*session.State, error) {
	st, err := k.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	k.observer.OnEvent(ctx, observability.NewEvent(EventResume, observability.LevelInfo, "kernel.Resume", map[string]any{
		"session":  st.ID,
		"messages": len(st.Transcript),
		"cursor":   st.Cursor,
	}))
	return st, nil
}

// Sessions lists saved sessions, most recent first.
func (k *Kernel) Sessions(ctx context.Context) ([]store.Info, error) {
	return k.store.List(ctx)
}

// Turn appends utterance to a copy of st, plans, runs the routed workers,
// aggregates and persists. st is never modified; on success the new state
// is in the Result. Failures are returned as *TurnError. A concluded state
// is rejected with ErrSessionConcluded.
func (k *Kernel) Turn(ctx context.Context, st *session.State, utterance string) (*Result, error) {
	if st == nil {
		return nil, ErrNilState
	}
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}
	// A concluded state has already written its note; resume it to continue.
	if st.ShouldExit {
		return nil, fmt.Errorf("%w: %s", ErrSessionConcluded, st.ID)
	}

	work := st.Clone()
	path := []router.Stage{router.Planning}

	fail := func(stage router.Stage, err error) (*Result, error) {
		k.observer.OnEvent(ctx, observability.NewEvent(EventError, observability.LevelError, "kernel.Turn", map[string]any{
			"session": work.ID,
			"stage":   string(stage),
			"path":    router.Strings(path),
			"error":   err.Error(),
		}))
		return nil, &TurnError{SessionID: work.ID, Stage: stage, Path: append([]router.Stage(nil), path...), Err: err}
	}

	k.observer.OnEvent(ctx, observability.NewEvent(EventTurnStart, observability.LevelInfo, "kernel.Turn", map[string]any{
		"session":          work.ID,
		"utterance_length": len(utterance),
		"messages":         len(work.Transcript),
	}))

	if err := work.Apply(session.Delta{Append: protocol.InitMessages(protocol.RoleUser, utterance)}); err != nil {
		return fail(router.Planning, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(router.Planning, err)
	}
	k.stageStart(ctx, work.ID, router.Planning)
	p := k.planner.Plan(ctx, work.Transcript, work.Summary)
	if err := work.Apply(planDelta(p)); err != nil {
		return fail(router.Planning, err)
	}
	k.stageComplete(ctx, work.ID, router.Planning)

	from := router.Planning
	for {
		stage, edge := router.NextEdge(from, p)
		k.observer.OnEvent(ctx, observability.NewEvent(EventTransition, observability.LevelVerbose, "kernel.Turn", map[string]any{
			"from": string(from),
			"to":   string(stage),
			"edge": edge,
		}))
		path = append(path, stage)
		if stage == router.Aggregating {
			break
		}

		if err := ctx.Err(); err != nil {
			return fail(stage, err)
		}
		w, ok := k.workers[stage]
		if !ok {
			return fail(stage, fmt.Errorf("%w: %s", ErrNoWorker, stage))
		}

		k.stageStart(ctx, work.ID, stage)
		d, err := w.Run(ctx, work)
		if err != nil {
			return fail(stage, err)
		}
		if err := work.Apply(d); err != nil {
			return fail(stage, err)
		}
		k.stageComplete(ctx, work.ID, stage)
		from = stage
	}

	if err := ctx.Err(); err != nil {
		return fail(router.Aggregating, err)
	}
	k.stageStart(ctx, work.ID, router.Aggregating)
	out, err := k.aggregator.Run(ctx, work)
	if err != nil {
		return fail(router.Aggregating, err)
	}
	if err := work.Apply(out.Delta); err != nil {
		return fail(router.Aggregating, err)
	}
	k.stageComplete(ctx, work.ID, router.Aggregating)

	result := &Result{
		State:        work,
		Appended:     out.Delta.Append,
		Plan:         p,
		Path:         path,
		Location:     out.Location,
		NoteLocation: out.NoteLocation,
		Compressed:   out.Compressed,
	}

	k.observer.OnEvent(ctx, observability.NewEvent(EventTurnComplete, observability.LevelInfo, "kernel.Turn", map[string]any{
		"session":     work.ID,
		"path":        router.Strings(path),
		"messages":    len(work.Transcript),
		"cursor":      work.Cursor,
		"compressed":  out.Compressed,
		"should_exit": work.ShouldExit,
		"location":    out.Location,
	}))

	return result, nil
}

// planDelta clears the previous turn's outputs and records p. A nil plan,
// from an empty transcript, changes nothing.
func planDelta(p *plan.Plan) session.Delta {
	if p == nil {
		return session.Delta{}
	}
	return session.Delta{ClearOutputs: true, Plan: p}
}

func (k *Kernel) stageStart(ctx context.Context, id string, stage router.Stage) {
	k.observer.OnEvent(ctx, observability.NewEvent(EventStageStart, observability.LevelVerbose, "kernel.Turn", map[string]any{
		"session": id,
		"stage":   string(stage),
	}))
}

func (k *Kernel) stageComplete(ctx context.Context, id string, stage router.Stage) {
	k.observer.OnEvent(ctx, observability.NewEvent(EventStageComplete, observability.LevelVerbose, "kernel.Turn", map[string]any{
		"session": id,
		"stage":   string(stage),
	}))
}
