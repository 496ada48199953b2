// Package report turns job states and results into plain-text reports for
// the calling agent. Formatting never fails; missing data omits its section.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nextgen-mcp/analysis"
)

const noSuggestion = "(no suggestion)"

// Options tunes report output.
type Options struct {
	// Debug appends the raw remote payload.
	Debug bool
}

// Format renders any job state: pending and failed states get a status
// section only, succeeded states the full result report.
func Format(state analysis.JobState, opts Options) string {
	switch state.Status {
	case analysis.StatusSucceeded:
		result := state.Result
		if result == nil {
			result = &analysis.JobResult{}
		}
		if result.WorkflowID == "" {
			copied := *result
			copied.WorkflowID = state.Handle.ID
			result = &copied
		}
		return FormatResult(result, opts)
	case analysis.StatusFailed:
		var b strings.Builder
		writeStatus(&b, "failed", state.Handle.ID)
		reason := state.Reason
		if reason == "" {
			reason = "no reason given"
		}
		fmt.Fprintf(&b, "Reason: %s\n", reason)
		return strings.TrimRight(b.String(), "\n")
	default:
		var b strings.Builder
		writeStatus(&b, "running", state.Handle.ID)
		b.WriteString("The workflow is still in progress. Check again later.\n")
		return strings.TrimRight(b.String(), "\n")
	}
}

// FormatResult renders a completed result. Section order is fixed:
// status, scores, rewrite scores, rewritten text, issues.
func FormatResult(result *analysis.JobResult, opts Options) string {
	if result == nil {
		result = &analysis.JobResult{}
	}

	sections := make([]string, 0, 6)

	var status strings.Builder
	writeStatus(&status, "completed", result.WorkflowID)
	sections = append(sections, status.String())

	if s := formatScores("SCORES", result.Scores); s != "" {
		sections = append(sections, s)
	}
	if s := formatScores("REWRITE SCORES", result.RewriteScores); s != "" {
		sections = append(sections, s)
	}
	if strings.TrimSpace(result.RewrittenText) != "" {
		sections = append(sections, "REWRITTEN TEXT\n"+result.RewrittenText+"\n")
	}
	if s := formatIssues(result.Issues); s != "" {
		sections = append(sections, s)
	}
	if opts.Debug && len(result.Raw) > 0 {
		sections = append(sections, "RAW RESPONSE\n"+indentJSON(result.Raw)+"\n")
	}

	return strings.TrimRight(strings.Join(sections, "\n"), "\n")
}

func writeStatus(b *strings.Builder, status, workflowID string) {
	fmt.Fprintf(b, "STATUS: %s\n", status)
	if workflowID != "" {
		fmt.Fprintf(b, "Workflow ID: %s\n", workflowID)
	}
}

func formatScores(title string, s *analysis.Scores) string {
	if s == nil {
		return ""
	}
	var lines []string

	if s.Quality != nil {
		lines = append(lines, "  Quality: "+num(s.Quality.Score))
	}
	if c := s.Clarity; c != nil {
		lines = append(lines, "  Clarity: "+num(c.Score))
		lines = appendFloat(lines, "Flesch reading ease", c.FleschReadingEase)
		lines = appendFloat(lines, "Sentence complexity", c.SentenceComplexity)
		lines = appendFloat(lines, "Vocabulary complexity", c.VocabularyComplexity)
		lines = appendFloat(lines, "Average sentence length", c.AverageSentenceLength)
		lines = appendInt(lines, "Word count", c.WordCount)
		lines = appendInt(lines, "Sentence count", c.SentenceCount)
	}
	if g := s.Grammar; g != nil {
		lines = append(lines, "  Grammar: "+num(g.Score)+issueCount(g.Issues))
	}
	if sg := s.StyleGuide; sg != nil {
		lines = append(lines, "  Style guide compliance: "+num(sg.Score)+issueCount(sg.Issues))
	}
	if t := s.Tone; t != nil {
		lines = append(lines, "  Tone: "+num(t.Score))
		if line := versusTarget("Informality", t.Informality, t.TargetInformality); line != "" {
			lines = append(lines, line)
		}
		if line := versusTarget("Liveliness", t.Liveliness, t.TargetLiveliness); line != "" {
			lines = append(lines, line)
		}
	}
	if term := s.Terminology; term != nil {
		lines = append(lines, "  Terminology: "+num(term.Score)+issueCount(term.Issues))
	}

	if len(lines) == 0 {
		return ""
	}
	return title + "\n" + strings.Join(lines, "\n") + "\n"
}

func formatIssues(issues []analysis.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ISSUES (%d)\n", len(issues))
	for i, issue := range issues {
		category := issue.Category
		if category == "" {
			category = "general"
		}
		suggestion := issue.SuggestedText()
		if strings.TrimSpace(suggestion) == "" {
			suggestion = noSuggestion
		} else {
			suggestion = strconv.Quote(suggestion)
		}
		fmt.Fprintf(&b, "  %d. [%s] %s -> %s\n", i+1, category, strconv.Quote(issue.Original), suggestion)
	}
	return b.String()
}

func appendFloat(lines []string, label string, v *float64) []string {
	if v == nil {
		return lines
	}
	return append(lines, "    "+label+": "+num(*v))
}

func appendInt(lines []string, label string, v *int) []string {
	if v == nil {
		return lines
	}
	return append(lines, "    "+label+": "+strconv.Itoa(*v))
}

func issueCount(n *int) string {
	if n == nil {
		return ""
	}
	if *n == 1 {
		return " (1 issue)"
	}
	return fmt.Sprintf(" (%d issues)", *n)
}

func versusTarget(label string, value, target *float64) string {
	switch {
	case value != nil && target != nil:
		return fmt.Sprintf("    %s: %s (target %s)", label, num(*value), num(*target))
	case value != nil:
		return fmt.Sprintf("    %s: %s", label, num(*value))
	case target != nil:
		return fmt.Sprintf("    %s target: %s", label, num(*target))
	default:
		return ""
	}
}

// num prints at most two decimals and drops trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func indentJSON(raw json.RawMessage) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return out.String()
}
