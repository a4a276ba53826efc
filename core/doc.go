// Package core provides the foundational domain types and interfaces used by
// DialogMesh. It defines the core abstractions for:
//
//   - Sessions and Messages (durable conversational history)
//   - TurnState (the mutable record threaded through one workflow turn)
//   - StreamEvents (the ordered per-session boundary surface)
//   - Documents and retrieval results (hybrid search domain)
//   - Pluggable stores for chat history and documents
//   - Agents (the single capability interface the supervisor delegates to)
//
// Higher-level packages (workflow, supervisor, retrieval, memory) depend on
// these contracts rather than on concrete storage or model implementations.
package core
