// Package msgraph loads SharePoint, OneDrive and Teams content through
// Microsoft Graph.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kailas-cloud/talkdb/internal/connectors"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	graphScope      = "https://graph.microsoft.com/.default"
	tokenURLPattern = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	maxFileBytes    = 10 << 20
)

// Options are shared by the Graph connectors.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

func (o Options) baseURL() string {
	if o.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(o.BaseURL, "/")
}

// client is an authenticated Graph client for one load.
type client struct {
	http *http.Client
	base string
}

// newClient authenticates with access_token when present, otherwise with
// the client credentials tenant_id, client_id and client_secret. token_url
// overrides the Microsoft identity endpoint.
func newClient(ctx context.Context, cfg connectors.Config, opts Options) (*client, error) {
	base := &http.Client{Timeout: opts.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var ts oauth2.TokenSource
	if tok := cfg.String("access_token"); tok != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
	} else {
		if err := cfg.Require("tenant_id", "client_id", "client_secret"); err != nil {
			return nil, err
		}
		tokenURL := cfg.String("token_url")
		if tokenURL == "" {
			tokenURL = fmt.Sprintf(tokenURLPattern, cfg.String("tenant_id"))
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.String("client_id"),
			ClientSecret: cfg.String("client_secret"),
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
		}
		ts = cc.TokenSource(ctx)
	}

	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = opts.Timeout
	return &client{http: hc, base: opts.baseURL()}, nil
}

func (c *client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.base + path
}

func (c *client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("graph returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// list follows @odata.nextLink and decodes every item of "value".
func list[T any](ctx context.Context, c *client, path string) ([]T, error) {
	var out []T
	for next := path; next != ""; {
		var page struct {
			Value    []T    `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		next = page.NextLink
	}
	return out, nil
}

func (c *client) download(ctx context.Context, path string) (string, error) {
	resp, err := c.do(ctx, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(b), nil
}
