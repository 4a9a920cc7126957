// Package api is the typed client for the speaker-identification backend's
// REST surface. Every method returns either a value or an *Error; transport and
// decode failures never escape as anything else.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds list, detail and edit requests.
	DefaultTimeout = 30 * time.Second
	// DefaultUploadTimeout bounds a conversation upload including processing.
	DefaultUploadTimeout = 10 * time.Minute

	maxReplyBytes = 32 << 20
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the backend rooted at baseURL.
type Client struct {
	baseURL       string
	http          HTTPDoer
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithTimeout sets the per-request timeout for non-upload calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUploadTimeout sets the timeout for uploads.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a Client. baseURL is the server origin, e.g.
// "http://localhost:8003"; request paths are rooted at /api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:          http.DefaultClient,
		timeout:       DefaultTimeout,
		uploadTimeout: DefaultUploadTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured server origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// UploadTimeout returns the upload timeout.
func (c *Client) UploadTimeout() time.Duration { return c.uploadTimeout }

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/")
}

// resolve turns a server-relative URL such as an utterance audio_url into an
// absolute one.
func (c *Client) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

type request struct {
	op          string
	method      string
	url         string
	body        io.Reader
	contentType string
	header      http.Header
	timeout     time.Duration
}

func jsonRequest(op, method, target string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("encode body: %v", err), Err: err}
	}
	return request{op: op, method: method, url: target, body: bytes.NewReader(data), contentType: "application/json"}, nil
}

func formRequest(op, method, target string, values url.Values) request {
	return request{
		op:          op,
		method:      method,
		url:         target,
		body:        strings.NewReader(values.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}
}

// send performs req and decodes a 2xx JSON reply into out (when non-nil).
func (c *Client) send(ctx context.Context, req request, out any) error {
	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, req.body)
	if err != nil {
		return &Error{Kind: KindNetworkFailure, Op: req.op, Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, req.op, timeout, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return c.transportError(ctx, req.op, timeout, err)
	}

	c.logger.Debug().
		Str("op", req.op).
		Str("method", req.method).
		Str("url", req.url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := statusError(req.op, resp.StatusCode, data)
		c.logger.Warn().Str("op", req.op).Int("status", resp.StatusCode).Str("detail", apiErr.Message).Msg("api request failed")
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetworkFailure, Op: req.op, Status: resp.StatusCode, Message: fmt.Sprintf("decode reply: %v", err), Err: err}
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Warn().Str("op", op).Dur("timeout", timeout).Msg("api request timed out")
		return &Error{Kind: KindTimeout, Op: op, Message: fmt.Sprintf("no reply within %s", timeout), Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetworkFailure, Op: op, Message: "request canceled", Err: err}
	}
	c.logger.Warn().Err(err).Str("op", op).Msg("api transport failure")
	return &Error{Kind: KindNetworkFailure, Op: op, Message: err.Error(), Err: err}
}

// checkStatus turns a 2xx {success:false} envelope into a ServerError.
func checkStatus(op string, w statusWire) error {
	if !w.failed() {
		return nil
	}
	msg := w.detail()
	if msg == "" {
		msg = "server reported failure"
	}
	return &Error{Kind: KindServerError, Op: op, Status: http.StatusOK, Message: msg}
}

func validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}
