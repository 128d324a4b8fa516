package talkdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	chiTransport "github.com/kailas-cloud/talkdb/internal/transport/chi"
)

// Wire types shared with the server.
type (
	SearchRequest       = chiTransport.SearchRequest
	SearchResponse      = chiTransport.SearchResponse
	ChatRequest         = chiTransport.ChatRequest
	ChatResponse        = chiTransport.ChatResponse
	Artifact            = chiTransport.Artifact
	RegisterSQLRequest  = chiTransport.RegisterSQLRequest
	RegisterSQLResponse = chiTransport.RegisterSQLResponse
	SQLRequest          = chiTransport.SQLRequest
	SQLAskResponse      = chiTransport.SQLAskResponse
	SQLExportResponse   = chiTransport.SQLExportResponse
	HealthResponse      = chiTransport.HealthResponse
	SourcesResponse     = chiTransport.SourcesResponse
	ConnectorConfig     = connectors.Config
)

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Source    string `json:"source"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Purged    int    `json:"purged,omitempty"`
}

// Client calls a talkdb server.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	obs    *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("talkdb: invalid server url %q", baseURL)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{base: base, apiKey: cfg.apiKey, http: hc, obs: obs}, nil
}

// Search answers a query without chat memory unless SessionID is set.
func (c *Client) Search(ctx context.Context, req SearchRequest) (resp SearchResponse, err error) {
	defer c.observe(opSearch, &err)()

	err = c.do(ctx, http.MethodPost, "/search", req, &resp)
	return resp, err
}

// Chat runs one agent turn.
func (c *Client) Chat(ctx context.Context, req SearchRequest) (resp ChatResponse, err error) {
	defer c.observe(opChat, &err)()

	err = c.do(ctx, http.MethodPost, "/chat", ChatRequest{SearchRequest: req}, &resp)
	return resp, err
}

// Index loads a source with the given connector settings.
func (c *Client) Index(ctx context.Context, src string, cfg ConnectorConfig) (resp IndexReport, err error) {
	defer c.observe(opIndex, &err)()

	if cfg == nil {
		cfg = ConnectorConfig{}
	}
	err = c.do(ctx, http.MethodPost, "/indexing/"+url.PathEscape(src), cfg, &resp)
	return resp, err
}

// Reindex replaces the stored chunks of a source with a fresh load.
func (c *Client) Reindex(ctx context.Context, src string, cfg ConnectorConfig) (resp IndexReport, err error) {
	defer c.observe(opReindex, &err)()

	if cfg == nil {
		cfg = ConnectorConfig{}
	}
	query := url.Values{"reindex": {"true"}}
	err = c.doQuery(ctx, http.MethodPost, "/indexing/"+url.PathEscape(src), query, cfg, &resp)
	return resp, err
}

// RegisterSQL registers (or replaces) a named database.
func (c *Client) RegisterSQL(ctx context.Context, req RegisterSQLRequest) (resp RegisterSQLResponse, err error) {
	defer c.observe(opRegisterSQL, &err)()

	err = c.do(ctx, http.MethodPost, "/indexing/sql/register", req, &resp)
	return resp, err
}

// AskSQL answers a question from a registered database.
func (c *Client) AskSQL(ctx context.Context, req SQLRequest) (resp SQLAskResponse, err error) {
	defer c.observe(opAskSQL, &err)()

	err = c.do(ctx, http.MethodPost, "/sql/ask", req, &resp)
	return resp, err
}

// ExportSQL runs a question and saves the rows to a spreadsheet on the server.
func (c *Client) ExportSQL(ctx context.Context, req SQLRequest) (resp SQLExportResponse, err error) {
	defer c.observe(opExportSQL, &err)()

	err = c.do(ctx, http.MethodPost, "/sql/export", req, &resp)
	return resp, err
}

func (c *Client) observe(op string, err *error) func() {
	start := time.Now()
	return func() { c.obs.observe(op, start, *err) }
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("talkdb: encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("talkdb: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do sends a JSON request and decodes a 200 reply, or a reply with one of
// the extra accepted statuses, into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any, accept ...int) error {
	return c.doQuery(ctx, method, path, nil, body, out, accept...)
}

func (c *Client) doQuery(ctx context.Context, method, path string, query url.Values, body, out any, accept ...int) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("talkdb: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && !slices.Contains(accept, resp.StatusCode) {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("talkdb: decode %s reply: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Code != "" {
		apiErr.Code, apiErr.Message = body.Code, body.Message
		return apiErr
	}
	apiErr.Code = "http_error"
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// errStreamEnded is returned when the server closes a stream without the end marker.
var errStreamEnded = errors.New("talkdb: stream closed before end marker")
