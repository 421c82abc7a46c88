// Package remote talks to the spreadsheet-backed mirror endpoint.
//
// The contract is deliberately small:
//
//	GET  <endpoint>                  -> JSON array of records
//	POST <endpoint> {action, data}   -> {"status":"success"} or {"status":"error","message":...}
//
// POST bodies are sent as text/plain so browsers treat them as simple
// requests; the Go client keeps that header so any endpoint written for the
// browser app accepts it unchanged. There is no auth, idempotency key or retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jobops/jobops/internal/types"
)

// Actions accepted by the mirror.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// PostContentType is sent with every relay request.
const PostContentType = "text/plain;charset=utf-8"

// maxBody bounds how much of a response is read.
const maxBody = 16 << 20

var (
	// ErrMalformed is returned when a fetched body is not a valid record list.
	ErrMalformed = errors.New("malformed response from remote")

	// ErrInvalidEndpoint is returned by New for a URL that is not http(s).
	ErrInvalidEndpoint = errors.New("invalid remote endpoint")
)

// StatusError reports a non-2xx response or an error envelope.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.Code, e.Message)
}

// Request is the relay envelope.
type Request struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// DeleteData is the payload of a delete relay.
type DeleteData struct {
	ID string `json:"id"`
}

// Response is the envelope the mirror answers POSTs with.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// Client is a mirror endpoint client. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	schema   *gojsonschema.Schema
}

// New validates endpoint and returns a Client for it.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordListSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile record schema: %w", err)
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		schema:   schema,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchAll retrieves the full record list.
func (c *Client) FetchAll(ctx context.Context) ([]types.JobApplication, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := c.validate(body); err != nil {
		return nil, err
	}
	var jobs []types.JobApplication
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range jobs {
		if jobs[i].CustomFields == nil {
			jobs[i].CustomFields = map[string]string{}
		}
	}
	return jobs, nil
}

// Send relays one mutation. A WithIssued hook on ctx fires once the request
// body has been written.
func (c *Client) Send(ctx context.Context, r Request) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", r.Action, err)
	}
	req, err := http.NewRequestWithContext(traceIssued(ctx), http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", PostContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", r.Action, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}
	var env Response
	if json.Unmarshal(body, &env) == nil && env.Status == "error" {
		return &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	return nil
}

// Create relays a new record.
func (c *Client) Create(ctx context.Context, job types.JobApplication) error {
	return c.Send(ctx, Request{Action: ActionCreate, Data: job})
}

// Update relays the full post-merge record.
func (c *Client) Update(ctx context.Context, job types.JobApplication) error {
	return c.Send(ctx, Request{Action: ActionUpdate, Data: job})
}

// Delete relays a removal by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.Send(ctx, Request{Action: ActionDelete, Data: DeleteData{ID: id}})
}

func (c *Client) validate(body []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %v", ErrMalformed, errs)
	}
	return nil
}

// errorMessage pulls the message out of an error envelope, if there is one.
func errorMessage(body []byte) string {
	var env Response
	if json.Unmarshal(body, &env) == nil && env.Message != "" {
		return env.Message
	}
	return ""
}
