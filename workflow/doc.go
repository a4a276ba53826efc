// Package workflow implements the per-turn state machine driving one user
// turn: persist the input, decide on tool use, run the confirmation
// handshake, retrieve supporting documents, call the model and finalize the
// response, mirroring every step into the session's event stream.
//
// Nodes mutate the turn's TurnState and never panic past the engine boundary;
// failures are recorded into the state's error field and routed to a terminal
// error-handling step that still produces a non-empty user-facing response.
package workflow
