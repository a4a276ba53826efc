// Package supervisor decomposes a free-form request into tasks and delegates
// each to a named specialist agent, threading accumulated results through all
// subsequent prompts and synthesizing one final answer.
//
// Model output is untrusted at every step: a malformed plan collapses to a
// single task, a malformed delegation self-executes the task, and the loop is
// bounded by an iteration cap so delegation can never run away.
package supervisor
