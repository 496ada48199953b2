// Package analysis defines the job model shared by the submitter, poller,
// coordinator and report layers.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// JobKind selects the remote endpoint family a job is submitted under.
type JobKind string

const (
	KindRewrite     JobKind = "rewrite"
	KindCheck       JobKind = "check"
	KindSuggestions JobKind = "suggestions"
)

// Kinds lists every supported job kind in tool registration order.
var Kinds = []JobKind{KindRewrite, KindCheck, KindSuggestions}

// ParseJobKind accepts both the singular kind names and the plural endpoint
// segments ("rewrites", "checks").
func ParseJobKind(value string) (JobKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "rewrite", "rewrites":
		return KindRewrite, nil
	case "check", "checks":
		return KindCheck, nil
	case "suggestion", "suggestions":
		return KindSuggestions, nil
	default:
		return "", &ValidationError{Field: "workflow_type", Message: fmt.Sprintf("unknown workflow type %q", value)}
	}
}

// Path returns the endpoint segment for the kind.
func (k JobKind) Path() string {
	switch k {
	case KindRewrite:
		return "rewrites"
	case KindCheck:
		return "checks"
	default:
		return "suggestions"
	}
}

// JobRequest is the caller-supplied input for one job.
type JobRequest struct {
	Text       string
	Dialect    string
	Tone       string
	StyleGuide string
}

// Validate checks the text bounds. Length is measured in characters.
func (r JobRequest) Validate(maxTextLength int) error {
	if r.Text == "" {
		return &ValidationError{Field: "text", Message: "text must not be empty"}
	}
	if n := utf8.RuneCountInString(r.Text); maxTextLength > 0 && n > maxTextLength {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("text is %d characters, maximum is %d", n, maxTextLength),
		}
	}
	return nil
}

// JobHandle correlates a submitted job with later status checks.
type JobHandle struct {
	ID   string
	Kind JobKind
}

// Status is the closed set of job states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobState is one immutable snapshot of a job. Result is set only when
// Status is StatusSucceeded, Reason only when it is StatusFailed.
type JobState struct {
	Status Status
	Handle JobHandle
	Result *JobResult
	Reason string
}

func Pending(h JobHandle) JobState {
	return JobState{Status: StatusPending, Handle: h}
}

func Succeeded(h JobHandle, r *JobResult) JobState {
	if r == nil {
		r = &JobResult{}
	}
	return JobState{Status: StatusSucceeded, Handle: h, Result: r}
}

func Failed(h JobHandle, reason string) JobState {
	return JobState{Status: StatusFailed, Handle: h, Reason: reason}
}

// Terminal reports whether polling should stop.
func (s JobState) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

// JobResult is the terminal payload of a job. Every field is optional since
// each kind populates a different subset.
type JobResult struct {
	WorkflowID    string          `json:"workflow_id,omitempty"`
	Scores        *Scores         `json:"scores,omitempty"`
	RewriteScores *Scores         `json:"rewrite_scores,omitempty"`
	RewrittenText string          `json:"rewrite,omitempty"`
	Issues        []Issue         `json:"issues,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// Scores bundles the quality metrics reported for a text.
type Scores struct {
	Quality     *Metric       `json:"quality,omitempty"`
	Clarity     *ClarityScore `json:"clarity,omitempty"`
	Grammar     *IssueScore   `json:"grammar,omitempty"`
	StyleGuide  *IssueScore   `json:"style_guide,omitempty"`
	Tone        *ToneScore    `json:"tone,omitempty"`
	Terminology *IssueScore   `json:"terminology,omitempty"`
}

type Metric struct {
	Score float64 `json:"score"`
}

// ClarityScore carries readability sub-metrics next to the score.
type ClarityScore struct {
	Score                 float64  `json:"score"`
	WordCount             *int     `json:"word_count,omitempty"`
	SentenceCount         *int     `json:"sentence_count,omitempty"`
	AverageSentenceLength *float64 `json:"average_sentence_length,omitempty"`
	FleschReadingEase     *float64 `json:"flesch_reading_ease,omitempty"`
	VocabularyComplexity  *float64 `json:"vocabulary_complexity,omitempty"`
	SentenceComplexity    *float64 `json:"sentence_complexity,omitempty"`
}

type IssueScore struct {
	Score  float64 `json:"score"`
	Issues *int    `json:"issues,omitempty"`
}

// ToneScore compares measured informality and liveliness against targets.
type ToneScore struct {
	Score             float64  `json:"score"`
	Informality       *float64 `json:"informality,omitempty"`
	Liveliness        *float64 `json:"liveliness,omitempty"`
	TargetInformality *float64 `json:"target_informality,omitempty"`
	TargetLiveliness  *float64 `json:"target_liveliness,omitempty"`
}

// Issue is one finding against the submitted text.
type Issue struct {
	Category    string `json:"category"`
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}

// SuggestedText returns the suggestion, falling back to the replacement
// field some responses use instead.
func (i Issue) SuggestedText() string {
	if s := strings.TrimSpace(i.Suggestion); s != "" {
		return i.Suggestion
	}
	return i.Replacement
}
