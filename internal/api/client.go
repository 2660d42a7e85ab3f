// Package api is the client for the EcoLoop REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ecoloop/ecoloop/internal/logger"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout allows a sleeping hosted backend to wake up.
	DefaultTimeout = 120 * time.Second

	maxResponseBytes = 4 << 20
)

// Session supplies the bearer token and is told when the backend rejects it.
type Session interface {
	Token() string
	Unauthorized()
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	session Session
	log     *logger.Logger
	tracer  trace.Tracer
	retry   RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession sets the bearer token source.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = s }
}

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL. An empty baseURL uses DefaultBaseURL
// and a non-positive timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:    logger.Nop(),
		tracer: otel.Tracer("github.com/ecoloop/ecoloop/internal/api"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL.String() }

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
	schema      *Schema
}

func jsonRequest(op, method, path string, payload any, auth bool) (request, error) {
	r := request{op: op, method: method, path: path, auth: auth}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return r, fmt.Errorf("%s: encode request: %w", op, err)
		}
		r.body = bytes.NewReader(b)
		r.contentType = "application/json"
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := c.tracer.Start(ctx, "api."+r.op, trace.WithAttributes(
		attribute.String("http.request.method", r.method),
		attribute.String("url.path", r.path),
	))
	defer span.End()

	err := c.withRetry(ctx, r, func() error { return c.roundTrip(ctx, r, out, span) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, r request, out any, span trace.Span) error {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL.String()+r.path, r.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth && c.session != nil {
		if tok := c.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classifyTransport(r.op, err)
		c.log.Warn("api request failed", "op", r.op, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(r.op, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.log.Debug("api request", "op", r.op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if r.auth && c.session != nil {
			c.session.Unauthorized()
		}
		return &ErrAuth{Op: r.op, Detail: detail(raw)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &ErrAPI{Op: r.op, Status: resp.StatusCode, Detail: detail(raw)}
	}

	if err := validateBody(r.schema, raw); err != nil {
		return &ErrAPI{Op: r.op, Status: resp.StatusCode, Err: err}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ErrAPI{Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrTimeout{Op: op, Err: err}
	}
	return &ErrNetwork{Op: op, Err: err}
}

// detail extracts the backend error message. FastAPI sends either a string
// or a list of validation entries with a msg field.
func detail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(bytes.TrimSpace(raw[:min(len(raw), 200)])))
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, e := range list {
			if e.Msg != "" {
				msgs = append(msgs, e.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}
