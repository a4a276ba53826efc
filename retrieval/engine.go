package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
)

// Options configure the retrieval engine.
type Options struct {
	// TopK is the maximum number of documents returned per query.
	TopK int
	// MinSimilarity drops matches scoring below the floor. Zero disables the
	// filter.
	MinSimilarity float64
	// Mode selects the search tiers; defaults to hybrid.
	Mode   core.SearchMode
	Logger logging.Logger
}

// Engine performs hybrid retrieval over a DocumentStore. The embedder is
// optional; without one, search degrades to the text tiers.
type Engine struct {
	store    core.DocumentStore
	embedder model.Embedder
	opts     Options
}

// NewEngine constructs an Engine. Pass a nil embedder to run text-only.
func NewEngine(store core.DocumentStore, embedder model.Embedder, optFns ...func(o *Options)) *Engine {
	opts := Options{
		TopK:   5,
		Mode:   core.SearchHybrid,
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{store: store, embedder: embedder, opts: opts}
}

// Retrieve runs the tier cascade for the query and formats the hits. Failures
// are logged and degrade: an embedding error drops the semantic tier, a store
// error yields an empty result. The caller never has to handle an error.
func (e *Engine) Retrieve(ctx context.Context, query string) core.RetrievalResult {
	start := time.Now()
	result := core.RetrievalResult{Query: query}

	var embedding []float32
	if e.embedder != nil {
		vec, err := e.embedder.EmbedQuery(ctx, query)
		if err != nil {
			e.opts.Logger.Warn("Query embedding failed, skipping semantic tier", "error", err.Error())
		} else {
			embedding = vec
		}
	}

	matches, err := e.store.Search(ctx, query, embedding, e.opts.Mode, e.opts.TopK)
	if err != nil {
		e.opts.Logger.Error("Document search failed", "query", query, "error", err.Error())
		return result
	}

	if e.opts.MinSimilarity > 0 {
		var kept []core.DocumentMatch
		for _, m := range matches {
			if m.Similarity >= e.opts.MinSimilarity {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	result.Documents = matches
	result.HasRelevantDocs = len(matches) > 0
	if result.HasRelevantDocs {
		result.Context = FormatContext(matches)
		result.References = FormatReferences(matches)
	}

	tiers := map[core.SearchTier]int{}
	for _, m := range matches {
		tiers[m.Tier]++
	}
	e.opts.Logger.Debug("Search completed",
		"query", query,
		"total", len(matches),
		"semantic", tiers[core.TierSemantic],
		"fulltext", tiers[core.TierFullText],
		"keyword", tiers[core.TierKeyword],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// FormatContext renders matches into a numbered context block for the model
// prompt. Each entry names the document id so the model can cite it.
func FormatContext(matches []core.DocumentMatch) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Document %d] id=%s title=%q (similarity %.2f, %s tier)\n", i+1, m.ID, m.Title, m.Similarity, m.Tier)
		b.WriteString(m.Content)
	}
	return b.String()
}

// FormatReferences renders matches into a markdown source list shown to the
// user below the answer.
func FormatReferences(matches []core.DocumentMatch) string {
	var b strings.Builder
	b.WriteString("**Sources:**\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- **%s**", m.Title)
		if m.SourcePath != "" {
			fmt.Fprintf(&b, " (%s", m.SourcePath)
			if m.StartLine > 0 {
				fmt.Fprintf(&b, ", lines %d-%d", m.StartLine, m.EndLine)
			}
			b.WriteString(")")
		}
		fmt.Fprintf(&b, " | similarity %.2f\n", m.Similarity)
	}
	return b.String()
}
