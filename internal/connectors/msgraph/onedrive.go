package msgraph

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// OneDrive reads text files from a user's drive.
//
// Settings: tenant_id, client_id, client_secret, user_principal_name;
// optional paths (folders to read instead of the root).
type OneDrive struct {
	opts Options
}

// NewOneDrive creates a OneDrive connector.
func NewOneDrive(opts Options) *OneDrive {
	return &OneDrive{opts: opts}
}

// Load implements connectors.Connector.
func (o *OneDrive) Load(ctx context.Context, cfg connectors.Config) ([]chunk.Document, error) {
	if err := cfg.Require("user_principal_name"); err != nil {
		return nil, err
	}
	c, err := newClient(ctx, cfg, o.opts)
	if err != nil {
		return nil, err
	}

	dr := &drive{c: c, base: "/users/" + url.PathEscape(cfg.String("user_principal_name")) + "/drive", src: source.OneDrive}
	paths := cfg.Strings("paths")
	if len(paths) == 0 {
		return dr.load(ctx, "")
	}

	var docs []chunk.Document
	for _, p := range paths {
		got, err := dr.load(ctx, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, got...)
	}
	return docs, nil
}
