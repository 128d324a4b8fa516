package talkdb

import (
	"context"
	"net/http"
)

// Health returns the aggregated service health. A 503 still decodes into a
// report with status "error".
func (c *Client) Health(ctx context.Context) (resp HealthResponse, err error) {
	defer c.observe(opHealth, &err)()

	err = c.do(ctx, http.MethodGet, "/health", nil, &resp, http.StatusServiceUnavailable)
	return resp, err
}

// Sources lists the indexed collections with their chunk counts.
func (c *Client) Sources(ctx context.Context) (resp SourcesResponse, err error) {
	defer c.observe(opSources, &err)()

	err = c.do(ctx, http.MethodGet, "/admin/sources", nil, &resp)
	return resp, err
}
