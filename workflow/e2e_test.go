package workflow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextgen-mcp/analysis"
	"nextgen-mcp/remote"
	"nextgen-mcp/report"
	"nextgen-mcp/retry"
	"nextgen-mcp/workflow"
)

// remoteStub serves submit responses on POST and replays polls on GET.
type remoteStub struct {
	submit string
	polls  []string
	posts  int32
	gets   int32
}

func (s *remoteStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		atomic.AddInt32(&s.posts, 1)
		_, _ = w.Write([]byte(s.submit))
		return
	}
	n := int(atomic.AddInt32(&s.gets, 1)) - 1
	if n >= len(s.polls) {
		n = len(s.polls) - 1
	}
	_, _ = w.Write([]byte(s.polls[n]))
}

func newStack(t *testing.T, stub *remoteStub) *workflow.Coordinator {
	t.Helper()

	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	client := remote.NewClient(remote.Options{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		MaxTextLength: 1000,
		Retrier:       retry.New(3, 0, nil),
	})
	return workflow.New(workflow.Options{
		Submitter:    client,
		Poller:       client,
		Timeout:      2 * time.Second,
		PollInterval: time.Millisecond,
	})
}

func TestEndToEnd_SynchronousCheck(t *testing.T) {
	t.Parallel()

	stub := &remoteStub{
		submit: `{"status":"completed","workflow_id":"sync-1","scores":{"quality":{"score":90},"grammar":{"score":100,"issues":0}}}`,
		polls:  []string{`{"status":"failed","error":"should not poll"}`},
	}
	c := newStack(t, stub)

	result, err := c.Run(context.Background(), analysis.KindCheck, analysis.JobRequest{Text: "The cat sat."})

	require.NoError(t, err)
	assert.Equal(t, 90.0, result.Scores.Quality.Score)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.posts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&stub.gets))
}

func TestEndToEnd_PolledRewrite(t *testing.T) {
	t.Parallel()

	stub := &remoteStub{
		submit: `{"status":"running","workflow_id":"abc123"}`,
		polls: []string{
			`{"status":"running"}`,
			`{"status":"running"}`,
			`{"status":"completed","rewrite":"The cat sits.","rewrite_scores":{"quality":{"score":95}}}`,
		},
	}
	c := newStack(t, stub)

	result, err := c.Run(context.Background(), analysis.KindRewrite, analysis.JobRequest{Text: "The cat sat."})

	require.NoError(t, err)
	assert.Equal(t, "The cat sits.", result.RewrittenText)
	assert.Equal(t, "abc123", result.WorkflowID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.gets))

	out := report.FormatResult(result, report.Options{})
	idx := strings.Index(out, "REWRITTEN TEXT\n")
	require.GreaterOrEqual(t, idx, 0, out)
	assert.Contains(t, out[idx:], "The cat sits.")
	assert.Contains(t, out, "REWRITE SCORES\n  Quality: 95")
}
