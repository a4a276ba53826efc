package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
)

const detectionPromptTemplate = `You route user requests to tools. Decide whether the user's message requires one of the available tools.

Available tools:
%s

User message: %q

Respond with a single JSON object:
{"needs_tool": bool, "tool_name": string, "confidence": number between 0 and 1, "reason": string, "suggested_args": object}

If no tool applies, set needs_tool to false and leave tool_name empty.`

// DetectorOptions configure the detector.
type DetectorOptions struct {
	Logger logging.Logger
}

// Detector asks a model whether a user utterance needs a tool from the
// registry. Model output is treated as untrusted: a response that cannot be
// parsed as JSON, or that names an unknown tool, degrades to "no tool needed"
// instead of failing the turn.
type Detector struct {
	llm      model.Model
	registry *Registry
	opts     DetectorOptions
}

// NewDetector constructs a Detector over the given registry.
func NewDetector(llm model.Model, registry *Registry, optFns ...func(o *DetectorOptions)) *Detector {
	opts := DetectorOptions{
		Logger: logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Detector{llm: llm, registry: registry, opts: opts}
}

// Detect classifies the user input. It only errors on model invocation
// failure; malformed model output is handled by degradation.
func (d *Detector) Detect(ctx context.Context, userInput string) (core.ToolDetectionResult, error) {
	none := core.ToolDetectionResult{NeedsTool: false}
	if d.registry.Len() == 0 {
		return none, nil
	}

	prompt := fmt.Sprintf(detectionPromptTemplate, d.registry.SchemaSummary(), userInput)
	raw, err := model.InvokeText(ctx, d.llm, prompt)
	if err != nil {
		return none, fmt.Errorf("tool detection call failed: %w", err)
	}

	payload, ok := util.ExtractJSON(raw)
	if !ok {
		d.opts.Logger.Warn("Unparseable detection output, assuming no tool", "output", raw)
		return none, nil
	}

	result := core.ToolDetectionResult{
		NeedsTool:     util.GetBool(payload, "needs_tool"),
		ToolName:      util.GetString(payload, "tool_name"),
		Confidence:    clamp01(util.GetFloat(payload, "confidence")),
		Reason:        util.GetString(payload, "reason"),
		SuggestedArgs: util.GetMap(payload, "suggested_args"),
	}

	if result.NeedsTool {
		if _, known := d.registry.Get(result.ToolName); !known {
			d.opts.Logger.Warn("Detector chose unknown tool, assuming no tool", "tool", result.ToolName)
			return none, nil
		}
	}

	d.opts.Logger.Debug("Tool detection completed",
		"needs_tool", result.NeedsTool,
		"tool", result.ToolName,
		"confidence", result.Confidence,
	)
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
