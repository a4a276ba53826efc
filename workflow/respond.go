package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/model"
)

const ragPromptTemplate = `Use the provided documents to answer the question. Separate what the documents support from what you know independently.

Documents:
%s

Question: %s

Respond with a single JSON object:
{
  "answer_from_provided_doc": "answer supported by the documents, empty string if none",
  "answer_from_llm": "answer from your general knowledge",
  "related_doc_ids": ["ids of documents you actually used"]
}`

// runRespond calls the model with the session history. When retrieval found
// relevant documents the last user message is rewritten into a structured
// prompt whose response is parsed and rendered with citations; a malformed
// response degrades to the raw text plus an unconditional reference list.
func (e *Engine) runRespond(ctx context.Context, state *core.TurnState) node {
	history, err := e.cfg.Memory.History(state.SessionID)
	if err != nil {
		state.Fail(fmt.Errorf("failed to load history: %w", err))
		return nodeErrorHandling
	}
	state.Messages = history

	hasDocs := state.Retrieval != nil && state.Retrieval.HasRelevantDocs
	messages := make([]core.Message, len(history))
	copy(messages, history)
	if hasDocs && len(messages) > 0 {
		prompt := fmt.Sprintf(ragPromptTemplate, state.Retrieval.Context, state.UserInput)
		messages[len(messages)-1] = core.NewMessage(core.RoleUser, prompt)
	}

	e.cfg.Bus.Emit(state.SessionID, core.EventLLMResponseStart, nil)

	raw, err := e.generate(ctx, state.SessionID, messages)
	if err != nil {
		state.Fail(fmt.Errorf("model call failed: %w", err))
		return nodeErrorHandling
	}

	if hasDocs {
		state.FinalResponse = renderGroundedResponse(raw, state.Retrieval)
	} else {
		state.FinalResponse = raw
	}
	if state.FinalResponse == "" {
		state.FinalResponse = fallbackResponse
	}

	e.cfg.Bus.Emit(state.SessionID, core.EventLLMResponseComplete, map[string]any{
		"response": state.FinalResponse,
	})
	return nodeFinalize
}

// generate runs the model call, mirroring partial output into chunk events
// when streaming is enabled.
func (e *Engine) generate(ctx context.Context, sessionID string, messages []core.Message) (string, error) {
	req := model.Request{
		Instructions: e.opts.Instructions,
		Messages:     messages,
		Stream:       e.opts.StreamResponses,
	}
	if !e.opts.StreamResponses {
		return model.Invoke(ctx, e.cfg.Model, req)
	}

	respCh, errCh := e.cfg.Model.Generate(ctx, req)
	var final string
	for resp := range respCh {
		if resp.Partial {
			e.cfg.Bus.Emit(sessionID, core.EventLLMResponseChunk, map[string]any{
				"chunk": resp.Content,
			})
			continue
		}
		final = resp.Content
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return final, nil
}

// renderGroundedResponse turns the model's structured output into the final
// markdown answer. Parse failure falls back to the raw text with every
// retrieved document listed as a reference.
func renderGroundedResponse(raw string, retrieved *core.RetrievalResult) string {
	payload, ok := util.ExtractJSON(raw)
	if !ok {
		return degradedResponse(raw, retrieved)
	}

	docAnswer := strings.TrimSpace(util.GetString(payload, "answer_from_provided_doc"))
	llmAnswer := strings.TrimSpace(util.GetString(payload, "answer_from_llm"))
	usedIDs := util.GetStringSlice(payload, "related_doc_ids")

	if docAnswer == "" && llmAnswer == "" {
		return degradedResponse(raw, retrieved)
	}

	var b strings.Builder
	if docAnswer != "" {
		b.WriteString(docAnswer)
	}
	if llmAnswer != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n**Additional context:**\n")
		}
		b.WriteString(llmAnswer)
	}

	cited := citedDocuments(retrieved.Documents, usedIDs)
	if len(cited) > 0 {
		b.WriteString("\n\n")
		b.WriteString(formatCitations(cited))
	}
	return b.String()
}

func degradedResponse(raw string, retrieved *core.RetrievalResult) string {
	text := strings.TrimSpace(raw)
	if retrieved.References == "" {
		return text
	}
	return text + "\n\n" + retrieved.References
}

func citedDocuments(docs []core.DocumentMatch, ids []string) []core.DocumentMatch {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []core.DocumentMatch
	for _, d := range docs {
		if wanted[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

func formatCitations(docs []core.DocumentMatch) string {
	var b strings.Builder
	b.WriteString("**Sources:**\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- **%s** | similarity %.2f\n", d.Title, d.Similarity)
	}
	return strings.TrimRight(b.String(), "\n")
}
