package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/ordermesh/agent"
	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/session"
)

// DefaultFailureReply is returned when a turn fails and nothing changed.
const DefaultFailureReply = "Sorry, something went wrong on our side. Nothing in your order has changed, please try again in a moment."

// ErrEmptyMessage is returned for turns without text.
var ErrEmptyMessage = errors.New("engine: empty user message")

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentTurns bounds the turns processed at once across all
	// sessions. Turns of a single session never run concurrently.
	MaxConcurrentTurns int

	// MaxCallsPerTurn caps the model calls of one turn, retries included.
	// Zero means unlimited.
	MaxCallsPerTurn int

	// FailureReply is the reply of a failed turn.
	FailureReply string
}

// DefaultConfig provides the default configuration values.
//
// Guard, classification and one specialist with their single retries need at
// most six model calls; the budget leaves headroom for one more.
var DefaultConfig = Config{
	MaxConcurrentTurns: 32,
	MaxCallsPerTurn:    7,
	FailureReply:       DefaultFailureReply,
}

// Options configures an Engine. The five stages are required.
type Options struct {
	Config Config

	Guard       *agent.Guard
	Classifier  *agent.Classifier
	Details     *agent.Details
	OrderTaker  *agent.OrderTaker
	Recommender *agent.Recommender

	// SessionStore persists snapshots after every turn and restores sessions
	// missing from the registry. Defaults to an in-memory store.
	SessionStore core.SessionStore

	Callbacks *CallbackManager

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Engine runs conversational turns: it owns the session registry, serializes
// the turns of each session and drives Guard, Classifier and one specialist
// per turn.
//
// Memory is staged on a clone during a turn and committed only when the turn
// succeeds, so a failed turn leaves cart and order state exactly as before.
type Engine struct {
	guard       *agent.Guard
	classifier  *agent.Classifier
	specialists map[core.AgentKind]agent.Stage

	store     core.SessionStore
	callbacks *CallbackManager
	logger    logging.Logger
	config    Config

	sem   *semaphore.Weighted
	loads singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// New creates an Engine.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Callbacks:    NewCallbackManager(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Guard == nil || opts.Classifier == nil || opts.Details == nil || opts.OrderTaker == nil || opts.Recommender == nil {
		return nil, errors.New("engine: guard, classifier, details, order taker and recommender are required")
	}
	if opts.Config.MaxConcurrentTurns <= 0 {
		opts.Config.MaxConcurrentTurns = DefaultConfig.MaxConcurrentTurns
	}
	if opts.Config.FailureReply == "" {
		opts.Config.FailureReply = DefaultFailureReply
	}

	return &Engine{
		guard:      opts.Guard,
		classifier: opts.Classifier,
		specialists: map[core.AgentKind]agent.Stage{
			core.AgentDetails:        opts.Details,
			core.AgentOrderTaking:    opts.OrderTaker,
			core.AgentRecommendation: opts.Recommender,
		},
		store:     opts.SessionStore,
		callbacks: opts.Callbacks,
		logger:    logging.OrNoOp(opts.Logger),
		config:    opts.Config,
		sem:       semaphore.NewWeighted(int64(opts.Config.MaxConcurrentTurns)),
		sessions:  make(map[string]*core.Session),
	}, nil
}

// Callbacks returns the callback registry.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// PostTurn processes one user message. An empty sessionID starts a new
// session. Turns of the same session run one at a time in arrival order.
//
// The caller's context is detached: cancelling it does not abort the turn,
// the result is then simply discarded by the caller. A turn that cannot be
// completed returns a TurnResult with Failed set and a nil error; errors are
// reserved for invalid input and session loading.
func (e *Engine) PostTurn(ctx context.Context, sessionID, text string) (core.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.TurnResult{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = core.NewID()
	}
	ctx = context.WithoutCancel(ctx)

	sess, end, err := e.acquire(ctx, sessionID)
	if err != nil {
		return core.TurnResult{}, err
	}
	defer end()

	// the context is never cancelled, so Acquire only blocks
	_ = e.sem.Acquire(ctx, 1)
	defer e.sem.Release(1)

	turnID := core.NewID()
	log := e.turnLogger(sessionID, turnID)
	start := time.Now()
	log.Info("engine.turn.start")

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackTurnStart, &CallbackContext{SessionID: sessionID, TurnID: turnID}); err != nil {
		log.Warn("engine.turn.rejected", "error", err)
		return core.TurnResult{}, fmt.Errorf("engine: turn rejected: %w", err)
	}

	res := e.runTurn(ctx, log, sess, turnID, text)

	if err := e.store.Save(ctx, sess.Snapshot()); err != nil {
		log.Error("engine.session.save.failed", "error", err)
		e.notify(ctx, log, CallbackOnError, &CallbackContext{SessionID: sessionID, TurnID: turnID, Err: err})
	}

	e.notify(ctx, log, CallbackTurnComplete, &CallbackContext{
		SessionID: sessionID, TurnID: turnID, Agent: res.Agent, Guard: res.Guard, Result: &res,
	})
	log.Info("engine.turn.complete", "agent", res.Agent, "guard", res.Guard, "order_state", res.OrderState,
		"failed", res.Failed, "duration", time.Since(start))
	return res, nil
}

func (e *Engine) runTurn(ctx context.Context, log logging.Logger, sess *core.Session, turnID, text string) core.TurnResult {
	user := core.NewUserMessage(text)
	history := sess.History().Append(user)
	mem := sess.Memory()
	mem.ResetTurn()

	ctx = core.WithCallBudget(ctx, core.NewCallBudget(e.config.MaxCallsPerTurn))
	cbCtx := func() *CallbackContext { return &CallbackContext{SessionID: sess.ID, TurnID: turnID} }

	guard := e.guard.Admit(ctx, history)
	mem.GuardDecision = guard.Decision
	gc := cbCtx()
	gc.Stage, gc.Guard = agent.StageGuard, guard.Decision
	e.notify(ctx, log, CallbackGuardDecision, gc)
	if guard.Fallback {
		e.notify(ctx, log, CallbackFallback, gc)
	}

	var reply string
	if !guard.Allowed() {
		log.Info("engine.turn.guard.rejected", "fallback", guard.Fallback)
		reply = guard.RefusalMessage
	} else {
		route := e.classifier.Classify(ctx, history)
		mem.RoutedAgent = route.Agent
		rc := cbCtx()
		rc.Stage, rc.Agent = agent.StageClassification, route.Agent
		e.notify(ctx, log, CallbackRouted, rc)
		if route.Fallback {
			e.notify(ctx, log, CallbackFallback, rc)
		}

		var (
			fallback bool
			err      error
		)
		stageStart := time.Now()
		reply, fallback, err = e.dispatch(ctx, route, history, mem)
		if sl, ok := log.(*logging.StructuredLogger); ok {
			sl.LogStage(string(route.Agent), time.Since(stageStart), fallback, err)
		}
		sc := cbCtx()
		sc.Stage, sc.Agent, sc.Err = agent.StageKind(route.Agent), route.Agent, err
		if err != nil {
			log.Error("engine.turn.failed", "agent", route.Agent, "error", err)
			e.notify(ctx, log, CallbackOnError, sc)
			return e.fail(sess, turnID, user, guard.Decision, route.Agent)
		}
		e.notify(ctx, log, CallbackStageComplete, sc)
		if fallback {
			e.notify(ctx, log, CallbackFallback, sc)
		}
	}

	bc := cbCtx()
	bc.Agent, bc.Guard, bc.Memory = mem.RoutedAgent, mem.GuardDecision, mem
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeCommit, bc); err != nil {
		log.Warn("engine.turn.commit.rejected", "error", err)
		bc.Err = err
		e.notify(ctx, log, CallbackOnError, bc)
		return e.fail(sess, turnID, user, mem.GuardDecision, mem.RoutedAgent)
	}

	sess.Commit(history.Append(core.NewAssistantMessage(reply)), mem)

	return core.TurnResult{
		TurnID:     turnID,
		SessionID:  sess.ID,
		Reply:      reply,
		Cart:       mem.Cart.Clone(),
		OrderState: mem.OrderState,
		OrderRef:   mem.OrderRef,
		Agent:      mem.RoutedAgent,
		Guard:      mem.GuardDecision,
	}
}

// dispatch runs exactly one specialist. The returned error is always fatal
// for the turn; recoverable failures are absorbed by the stages.
func (e *Engine) dispatch(ctx context.Context, route agent.Classification, history core.History, mem *core.AgentMemory) (string, bool, error) {
	stage, ok := e.specialists[route.Agent]
	if !ok {
		stage = e.specialists[core.AgentDetails]
	}

	switch s := stage.(type) {
	case *agent.Details:
		reply, err := s.Answer(ctx, history.LastUser(), history, mem)
		return reply, reply == agent.DefaultNoInformation, err
	case *agent.OrderTaker:
		out, err := s.Handle(ctx, history, mem)
		return out.Reply, out.Fallback, err
	case *agent.Recommender:
		rec, err := s.Recommend(ctx, history, mem, route.Category)
		return rec.Reply, rec.Fallback, err
	default:
		return "", false, fmt.Errorf("engine: unsupported stage %T", stage)
	}
}

// fail records the exchange in the history but keeps the memory as it was
// before the turn.
func (e *Engine) fail(sess *core.Session, turnID string, user core.Message, guard core.GuardDecision, routed core.AgentKind) core.TurnResult {
	reply := e.config.FailureReply
	sess.AppendHistory(user, core.NewAssistantMessage(reply))
	mem := sess.Memory()
	return core.TurnResult{
		TurnID:     turnID,
		SessionID:  sess.ID,
		Reply:      reply,
		Cart:       mem.Cart,
		OrderState: mem.OrderState,
		OrderRef:   mem.OrderRef,
		Agent:      routed,
		Guard:      guard,
		Failed:     true,
	}
}

func (e *Engine) notify(ctx context.Context, log logging.Logger, t CallbackType, c *CallbackContext) {
	if err := e.callbacks.ExecuteCallbacks(ctx, t, c); err != nil {
		log.Warn("engine.callback.failed", "type", t, "error", err)
	}
}

func (e *Engine) turnLogger(sessionID, turnID string) logging.Logger {
	if sl, ok := e.logger.(*logging.StructuredLogger); ok {
		return sl.WithComponent("engine").WithSession(sessionID, turnID)
	}
	return e.logger
}

// acquire resolves the session and waits for its turn. A session ended while
// the turn was queued is resolved again, so the turn runs on its successor.
func (e *Engine) acquire(ctx context.Context, id string) (*core.Session, func(), error) {
	for {
		sess, err := e.session(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		end := sess.BeginTurn()
		if !sess.Ended() {
			return sess, end, nil
		}
		end()
	}
}

// session returns the registered session, restoring it from the store or
// creating it on a miss. Concurrent misses for one id share a single load.
func (e *Engine) session(ctx context.Context, id string) (*core.Session, error) {
	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return sess, nil
	}

	v, err, _ := e.loads.Do(id, func() (any, error) {
		e.mu.RLock()
		sess, ok := e.sessions[id]
		e.mu.RUnlock()
		if ok {
			return sess, nil
		}

		snap, err := e.store.Load(ctx, id)
		switch {
		case err == nil:
			sess = core.RestoreSession(snap)
			e.logger.Debug("engine.session.restored", "session_id", id, "version", snap.Version)
		case errors.Is(err, core.ErrSessionNotFound):
			sess = core.NewSession(id)
			e.logger.Debug("engine.session.created", "session_id", id)
		default:
			return nil, fmt.Errorf("engine: load session %s: %w", id, err)
		}

		e.mu.Lock()
		e.sessions[id] = sess
		e.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Session), nil
}

// Session returns a snapshot of a live or persisted session.
func (e *Engine) Session(ctx context.Context, id string) (*core.SessionSnapshot, error) {
	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return sess.Snapshot(), nil
	}
	return e.store.Load(ctx, id)
}

// ActiveSessions returns the number of sessions held in memory.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// EndSession tears a session down after its in-flight turns finished and
// removes its snapshot from the store. Turns queued behind the teardown start
// over on a fresh session.
func (e *Engine) EndSession(ctx context.Context, id string) error {
	_, err := e.endSession(ctx, id, nil)
	return err
}

// endSession ends the registered session when keep (if set) approves it
// while the turn is held. It reports whether the session was ended.
func (e *Engine) endSession(ctx context.Context, id string, keep func(*core.Session) bool) (bool, error) {
	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		end := sess.BeginTurn()
		defer end()
		if sess.Ended() {
			return false, nil
		}
		if keep != nil && !keep(sess) {
			return false, nil
		}
		sess.End()
	} else if keep != nil {
		return false, nil
	}

	err := e.store.Delete(ctx, id)
	if ok {
		e.mu.Lock()
		if e.sessions[id] == sess {
			delete(e.sessions, id)
		}
		e.mu.Unlock()
	}
	if err != nil {
		return false, fmt.Errorf("engine: delete session %s: %w", id, err)
	}
	e.logger.Info("engine.session.ended", "session_id", id)
	return true, nil
}

// StartJanitor ends sessions idle for longer than idle, checking every
// interval until ctx is done. The returned channel closes when the janitor
// stopped.
func (e *Engine) StartJanitor(ctx context.Context, interval, idle time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := e.sweep(ctx, now, idle); n > 0 {
					e.logger.Info("engine.janitor.swept", "sessions", n)
				}
			}
		}
	}()
	return done
}

func (e *Engine) sweep(ctx context.Context, now time.Time, idle time.Duration) int {
	e.mu.RLock()
	var stale []string
	for id, sess := range e.sessions {
		if sess.PendingTurns() == 0 && now.Sub(sess.Updated()) > idle {
			stale = append(stale, id)
		}
	}
	e.mu.RUnlock()

	// a turn may have arrived since the scan; only the janitor's own turn
	// may be pending when the session is ended
	stillIdle := func(sess *core.Session) bool {
		return sess.PendingTurns() == 1 && now.Sub(sess.Updated()) > idle
	}

	n := 0
	for _, id := range stale {
		ended, err := e.endSession(ctx, id, stillIdle)
		if err != nil {
			e.logger.Warn("engine.janitor.failed", "session_id", id, "error", err)
			continue
		}
		if ended {
			n++
		}
	}
	return n
}
