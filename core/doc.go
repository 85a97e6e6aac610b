// Package core provides the domain types and collaborator interfaces shared by
// every stage of the ordering assistant. It defines:
//
//   - Messages and the append-only conversation History
//   - AgentMemory, the typed per-session state (cart, order state, retrieval
//     context, recommendation cache)
//   - Sessions with a FIFO turn lock so turns of one conversation never interleave
//   - Catalog, RuleTable, Embedder, VectorIndex and SessionStore interfaces
//   - The error taxonomy used to decide between retry, fallback and turn failure
//
// Implementation concerns (model providers, vector backends, persistence and
// orchestration) live in sibling packages that depend on these contracts.
package core
