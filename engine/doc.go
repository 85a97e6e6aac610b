// Package engine implements the session orchestrator of ordermesh.
//
// The Engine owns the registry of live sessions and runs each user turn
// through a fixed pipeline:
//
//	PostTurn ─► Guard ─┬─ rejected ─► refusal reply
//	                   └─ allowed ──► Classifier ─► Details | OrderTaker | Recommender
//
// # Concurrency
//
// Turns of one session are serialized by the session's FIFO ticket lock, so
// a turn arriving while another is in flight simply queues. Turns of
// different sessions run concurrently, bounded by Config.MaxConcurrentTurns.
// Every turn carries a core.CallBudget limiting its model calls.
//
// # Failure policy
//
// Stages absorb model failures (retry once, then a stage default). Only an
// unavailable catalog fails a turn: the engine then answers with
// Config.FailureReply, records the exchange in the history and keeps the
// memory exactly as it was before the turn.
//
// # Callbacks
//
// A CallbackManager exposes the turn lifecycle (start, guard decision,
// routing, stage completion, fallbacks, commit, completion, errors) for
// logging, metrics and business rules.
//
// # Persistence
//
// After every turn the session snapshot is written to the configured
// core.SessionStore; sessions missing from the registry are restored from
// it. EndSession and the idle janitor started by StartJanitor tear sessions
// down.
package engine
