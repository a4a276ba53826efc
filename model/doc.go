// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside DialogMesh.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Expose embedding generation (Embedder) for semantic retrieval
//   - Facilitate lightweight mocking for tests (MockModel, MockEmbedder)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (workflow, supervisor) remain decoupled from
// vendor SDKs.
package model
