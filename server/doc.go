// Package server exposes the engine as an HTTP Turn API built on chi.
//
//	POST   /v1/turns                   start a session (or continue one via session_id)
//	POST   /v1/sessions/{id}/turns     post a user message to a session
//	GET    /v1/sessions/{id}           cart, order state and history of a session
//	DELETE /v1/sessions/{id}           end a session
//	GET    /health                     liveness
//
// Turns are rate limited per session.
package server
