// Package confluence loads pages from a Confluence space over the REST API.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

const defaultPageSize = 50

// Connector reads every page of a space.
//
// Settings: base_url, username, api_token, space_key; optional limit
// (page size).
type Connector struct {
	client *http.Client
}

// New creates a Connector using client for HTTP calls.
func New(client *http.Client) *Connector {
	if client == nil {
		client = http.DefaultClient
	}
	return &Connector{client: client}
}

type pageList struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Body  struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
		Version struct {
			Number int `json:"number"`
		} `json:"version"`
	} `json:"results"`
	Links struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// Load implements connectors.Connector.
func (c *Connector) Load(ctx context.Context, cfg connectors.Config) ([]chunk.Document, error) {
	if err := cfg.Require("base_url", "username", "api_token", "space_key"); err != nil {
		return nil, err
	}
	base := strings.TrimRight(cfg.String("base_url"), "/")
	space := cfg.String("space_key")
	limit := defaultPageSize
	if n, err := strconv.Atoi(cfg.String("limit")); err == nil && n > 0 {
		limit = n
	}

	q := url.Values{}
	q.Set("spaceKey", space)
	q.Set("type", "page")
	q.Set("expand", "body.storage,version")
	q.Set("limit", strconv.Itoa(limit))
	next := base + "/rest/api/content?" + q.Encode()

	var docs []chunk.Document
	for next != "" {
		var page pageList
		if err := c.get(ctx, next, cfg.String("username"), cfg.String("api_token"), &page); err != nil {
			return nil, err
		}
		for _, p := range page.Results {
			text := connectors.HTMLToText(p.Body.Storage.Value)
			if text == "" {
				continue
			}
			docs = append(docs, chunk.Document{
				Source: source.Confluence,
				Path:   fmt.Sprintf("%s/spaces/%s/pages/%s", base, space, p.ID),
				Title:  p.Title,
				Text:   text,
				Metadata: map[string]string{
					"page_id":   p.ID,
					"space_key": space,
					"version":   strconv.Itoa(p.Version.Number),
				},
			})
		}

		next = ""
		if page.Links.Next != "" {
			next = base + page.Links.Next
		}
	}
	return docs, nil
}

func (c *Connector) get(ctx context.Context, u, user, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(user, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("confluence request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("confluence returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode confluence response: %w", err)
	}
	return nil
}
