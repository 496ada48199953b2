// Package remote talks to the text-analysis service: it submits jobs as
// multipart uploads and fetches job status.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"nextgen-mcp/analysis"
	"nextgen-mcp/logging"
	"nextgen-mcp/retry"
)

const (
	DefaultBaseURL   = "https://api.markup.ai/v1/style"
	defaultTimeout   = 30 * time.Second
	uploadField      = "file_upload"
	uploadFilename   = "text.txt"
	maxResponseBytes = 10 * 1024 * 1024
	logBodyBytes     = 2000
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxTextLength int
	Retrier       *retry.Retrier
	Logger        *slog.Logger
	Debug         bool
	// Transport overrides the base round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client implements job submission and status polling.
type Client struct {
	baseURL       string
	client        *http.Client
	timeout       time.Duration
	maxTextLength int
	retrier       *retry.Retrier
	logger        *slog.Logger
	debug         bool
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	retrier := opts.Retrier
	if retrier == nil {
		retrier = retry.New(retry.DefaultMaxAttempts, retry.DefaultBaseDelay, logger)
	}

	base := &http.Client{Transport: opts.Transport}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	token := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIKey, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, token)

	return &Client{
		baseURL:       baseURL,
		client:        client,
		timeout:       timeout,
		maxTextLength: opts.MaxTextLength,
		retrier:       retrier,
		logger:        logger.With("component", "remote"),
		debug:         opts.Debug,
	}
}

// Submit validates req, uploads it under kind and returns the initial state:
// terminal when the service finished synchronously, pending otherwise.
// Validation failures return *analysis.ValidationError without any request.
func (c *Client) Submit(ctx context.Context, kind analysis.JobKind, req analysis.JobRequest) (analysis.JobState, error) {
	if err := req.Validate(c.maxTextLength); err != nil {
		return analysis.JobState{}, err
	}

	payload, contentType, err := buildUpload(req.Text, [][2]string{
		{"dialect", req.Dialect},
		{"tone", req.Tone},
		{"style_guide", analysis.ResolveStyleGuide(req.StyleGuide)},
	})
	if err != nil {
		return analysis.JobState{}, fmt.Errorf("building upload: %w", err)
	}

	endpoint := c.baseURL + "/" + kind.Path()
	c.logger.Info("remote.submit", "kind", string(kind), "chars", len([]rune(req.Text)), "dialect", req.Dialect, "tone", req.Tone)

	body, err := c.do(ctx, "submit "+string(kind), func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("Accept", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return analysis.JobState{}, err
	}

	return parseState(body, analysis.JobHandle{Kind: kind})
}

// Poll fetches the current state of the job identified by handle. It does
// not enforce any overall deadline beyond ctx.
func (c *Client) Poll(ctx context.Context, handle analysis.JobHandle) (analysis.JobState, error) {
	if strings.TrimSpace(handle.ID) == "" {
		return analysis.JobState{}, &analysis.ValidationError{Field: "workflow_id", Message: "workflow id is required"}
	}

	endpoint := c.baseURL + "/" + handle.Kind.Path() + "/" + url.PathEscape(handle.ID)
	body, err := c.do(ctx, "poll "+handle.ID, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return analysis.JobState{}, err
	}

	return parseState(body, handle)
}

// do sends the request built by build through the retrier. Non-2xx responses
// count as failed attempts; once attempts run out the last status and body
// are surfaced as *analysis.RemoteError wrapping the *analysis.OperationFailed.
// Each attempt runs under its own timeout.
func (c *Client) do(ctx context.Context, label string, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var last *analysis.RemoteError

	body, err := retry.Do(ctx, c.retrier, label, func(ctx context.Context) ([]byte, error) {
		last = nil
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			last = &analysis.RemoteError{Err: err}
			return nil, last
		}
		defer resp.Body.Close()

		if err := googleapi.CheckResponse(resp); err != nil {
			last = toRemoteError(err, resp.StatusCode)
			c.logger.Debug("remote.error_response", "label", label, "status", last.StatusCode, "body", logging.Truncate(last.Body, logBodyBytes))
			return nil, last
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			last = &analysis.RemoteError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
			return nil, last
		}
		if c.debug {
			c.logger.Debug("remote.response", "label", label, "status", resp.StatusCode, "body", logging.Truncate(string(data), logBodyBytes))
		}
		return data, nil
	})
	if err != nil {
		if last != nil {
			return nil, &analysis.RemoteError{StatusCode: last.StatusCode, Body: last.Body, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func toRemoteError(err error, status int) *analysis.RemoteError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &analysis.RemoteError{StatusCode: apiErr.Code, Body: strings.TrimSpace(apiErr.Body), Err: apiErr}
	}
	return &analysis.RemoteError{StatusCode: status, Err: err}
}

// buildUpload encodes text as a plain-text file part followed by the
// non-empty form fields, in order.
func buildUpload(text string, fields [][2]string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFilename))
	header.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, text); err != nil {
		return nil, "", err
	}

	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
