package tools

import (
	"context"
	"fmt"
	"strings"

	"nextgen-mcp/analysis"
	"nextgen-mcp/report"
)

// Runner executes analysis workflows. *workflow.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, kind analysis.JobKind, req analysis.JobRequest) (*analysis.JobResult, error)
	Status(ctx context.Context, handle analysis.JobHandle) (analysis.JobState, error)
}

// Defaults fill optional tool arguments.
type Defaults struct {
	Dialect    string
	Tone       string
	StyleGuide string
}

// AnalysisTool submits text as one job kind and returns the formatted report.
type AnalysisTool struct {
	kind     analysis.JobKind
	runner   Runner
	defaults Defaults
	report   report.Options
}

// NewAnalysisTool creates the tool for kind.
func NewAnalysisTool(kind analysis.JobKind, runner Runner, defaults Defaults, opts report.Options) *AnalysisTool {
	return &AnalysisTool{
		kind:     kind,
		runner:   runner,
		defaults: defaults,
		report:   opts,
	}
}

func (a *AnalysisTool) Name() string {
	return string(a.kind)
}

func (a *AnalysisTool) Description() string {
	switch a.kind {
	case analysis.KindRewrite:
		return `Rewrite text to match a style guide, dialect and tone.

Returns quality scores for the rewritten text, the rewritten text itself and a summary of the changes.
Use this when the user wants improved text, not just feedback.`
	case analysis.KindCheck:
		return `Check text against a style guide and score it.

Returns quality, clarity, grammar, style guide, tone and terminology scores without changing the text.`
	default:
		return `Get concrete suggestions for improving text.

Returns a numbered list of issues, each with the original span and a suggested replacement.`
	}
}

func (a *AnalysisTool) Parameters() map[string]any {
	return analysisParameters()
}

func (a *AnalysisTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	req, err := requestFromArgs(args, a.defaults)
	if err != nil {
		return "", err
	}

	result, err := a.runner.Run(ctx, a.kind, req)
	if err != nil {
		return "", err
	}

	out := report.FormatResult(result, a.report)
	if a.kind == analysis.KindRewrite {
		if changes := report.Changes(req.Text, result.RewrittenText); changes != "" {
			out += "\n\n" + changes
		}
	}
	return out, nil
}

// StatusTool looks up a previously submitted workflow once.
type StatusTool struct {
	runner Runner
	report report.Options
}

func NewStatusTool(runner Runner, opts report.Options) *StatusTool {
	return &StatusTool{runner: runner, report: opts}
}

func (s *StatusTool) Name() string {
	return "workflow_status"
}

func (s *StatusTool) Description() string {
	return `Check the status of a workflow started by rewrite, check or suggestions.

Use this when an earlier call timed out: pass the workflow id from the error and the workflow type.
Returns the full report once the workflow has completed.`
}

func (s *StatusTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow_id": map[string]any{
				"type":        "string",
				"description": "The workflow id returned by an earlier call",
			},
			"workflow_type": map[string]any{
				"type":        "string",
				"description": "The tool that started the workflow",
				"enum":        kindNames(),
			},
		},
		"required": []string{"workflow_id", "workflow_type"},
	}
}

func (s *StatusTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := requiredString(args, "workflow_id")
	if err != nil {
		return "", err
	}
	typ, err := requiredString(args, "workflow_type")
	if err != nil {
		return "", err
	}
	kind, err := analysis.ParseJobKind(typ)
	if err != nil {
		return "", err
	}

	state, err := s.runner.Status(ctx, analysis.JobHandle{ID: id, Kind: kind})
	if err != nil {
		return "", err
	}
	return report.Format(state, s.report), nil
}

func analysisParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to analyze",
			},
			"dialect": map[string]any{
				"type":        "string",
				"description": "Language dialect of the text",
				"enum":        analysis.Dialects,
			},
			"tone": map[string]any{
				"type":        "string",
				"description": "Target tone",
				"enum":        analysis.Tones,
			},
			"style_guide": map[string]any{
				"type": "string",
				"description": fmt.Sprintf("Style guide name (%s) or a custom style guide id",
					strings.Join(analysis.StyleGuideNames(), ", ")),
			},
		},
		"required": []string{"text"},
	}
}

func requestFromArgs(args map[string]any, defaults Defaults) (analysis.JobRequest, error) {
	text, ok := args["text"].(string)
	if !ok {
		return analysis.JobRequest{}, &analysis.ValidationError{Field: "text", Message: "text is required and must be a string"}
	}

	req := analysis.JobRequest{
		Text:       text,
		Dialect:    defaults.Dialect,
		Tone:       defaults.Tone,
		StyleGuide: defaults.StyleGuide,
	}

	var err error
	if req.Dialect, err = optionalString(args, "dialect", req.Dialect); err != nil {
		return analysis.JobRequest{}, err
	}
	if req.Tone, err = optionalString(args, "tone", req.Tone); err != nil {
		return analysis.JobRequest{}, err
	}
	if req.StyleGuide, err = optionalString(args, "style_guide", req.StyleGuide); err != nil {
		return analysis.JobRequest{}, err
	}

	if req.Dialect != "" && !analysis.ValidDialect(req.Dialect) {
		return analysis.JobRequest{}, &analysis.ValidationError{
			Field:   "dialect",
			Message: fmt.Sprintf("unknown dialect %q, expected one of %s", req.Dialect, strings.Join(analysis.Dialects, ", ")),
		}
	}
	if req.Tone != "" && !analysis.ValidTone(req.Tone) {
		return analysis.JobRequest{}, &analysis.ValidationError{
			Field:   "tone",
			Message: fmt.Sprintf("unknown tone %q, expected one of %s", req.Tone, strings.Join(analysis.Tones, ", ")),
		}
	}
	return req, nil
}

func requiredString(args map[string]any, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", &analysis.ValidationError{Field: key, Message: key + " is required and must be a non-empty string"}
	}
	return strings.TrimSpace(value), nil
}

func optionalString(args map[string]any, key, fallback string) (string, error) {
	raw, present := args[key]
	if !present || raw == nil {
		return fallback, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", &analysis.ValidationError{Field: key, Message: key + " must be a string"}
	}
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return strings.TrimSpace(value), nil
}

func kindNames() []string {
	names := make([]string, 0, len(analysis.Kinds))
	for _, k := range analysis.Kinds {
		names = append(names, string(k))
	}
	return names
}
