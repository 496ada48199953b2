package remote

import (
	"encoding/json"
	"fmt"
	"strings"

	"nextgen-mcp/analysis"
)

type statusResponse struct {
	Status        string           `json:"status"`
	WorkflowID    string           `json:"workflow_id"`
	ID            string           `json:"id"`
	Error         json.RawMessage  `json:"error"`
	Message       string           `json:"message"`
	Reason        string           `json:"reason"`
	Scores        *analysis.Scores `json:"scores"`
	RewriteScores *analysis.Scores `json:"rewrite_scores"`
	Rewrite       string           `json:"rewrite"`
	RewrittenText string           `json:"rewritten_text"`
	Issues        []analysis.Issue `json:"issues"`
}

// parseState decodes a submit or status response into a JobState. handle
// supplies the kind and, for status responses, the id to fall back on.
func parseState(body []byte, handle analysis.JobHandle) (analysis.JobState, error) {
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return analysis.JobState{}, fmt.Errorf("parsing response: %w", err)
	}

	if id := firstNonEmpty(resp.WorkflowID, resp.ID); id != "" {
		handle.ID = id
	}

	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "running", "pending", "queued", "processing", "in_progress":
		if handle.ID == "" {
			return analysis.JobState{}, fmt.Errorf("pending response without workflow id")
		}
		return analysis.Pending(handle), nil
	case "failed", "error":
		reason := firstNonEmpty(errorText(resp.Error), resp.Reason, resp.Message)
		return analysis.Failed(handle, reason), nil
	case "completed", "succeeded", "done", "":
		if resp.Status == "" && !resp.hasResult() {
			return analysis.JobState{}, fmt.Errorf("response has neither status nor result")
		}
		result := &analysis.JobResult{
			WorkflowID:    handle.ID,
			Scores:        resp.Scores,
			RewriteScores: resp.RewriteScores,
			RewrittenText: firstNonEmpty(resp.Rewrite, resp.RewrittenText),
			Issues:        resp.Issues,
			Raw:           append(json.RawMessage(nil), body...),
		}
		return analysis.Succeeded(handle, result), nil
	default:
		return analysis.JobState{}, fmt.Errorf("unrecognized workflow status %q", resp.Status)
	}
}

func (r statusResponse) hasResult() bool {
	return r.Scores != nil || r.RewriteScores != nil || r.Rewrite != "" || r.RewrittenText != "" || len(r.Issues) > 0
}

// errorText reads an error field that is either a string or an object with
// a message.
func errorText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.Message, obj.Detail)
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
