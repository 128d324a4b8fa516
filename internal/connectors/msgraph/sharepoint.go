package msgraph

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// SharePoint reads text files from a site's document library.
//
// Settings: tenant_id, client_id, client_secret, site_name or site_id;
// optional drive_id and folder_path.
type SharePoint struct {
	opts Options
}

// NewSharePoint creates a SharePoint connector.
func NewSharePoint(opts Options) *SharePoint {
	return &SharePoint{opts: opts}
}

// Load implements connectors.Connector.
func (s *SharePoint) Load(ctx context.Context, cfg connectors.Config) ([]chunk.Document, error) {
	c, err := newClient(ctx, cfg, s.opts)
	if err != nil {
		return nil, err
	}

	driveID := cfg.String("drive_id")
	if driveID == "" {
		siteID, err := s.siteID(ctx, c, cfg)
		if err != nil {
			return nil, err
		}
		var d struct {
			ID string `json:"id"`
		}
		if err := c.getJSON(ctx, "/sites/"+siteID+"/drive", &d); err != nil {
			return nil, err
		}
		driveID = d.ID
	}

	dr := &drive{c: c, base: "/drives/" + url.PathEscape(driveID), src: source.SharePoint}
	return dr.load(ctx, cfg.String("folder_path"))
}

func (s *SharePoint) siteID(ctx context.Context, c *client, cfg connectors.Config) (string, error) {
	if id := cfg.String("site_id"); id != "" {
		return id, nil
	}
	name := cfg.String("site_name")
	if name == "" {
		return "", fmt.Errorf("%w: site_name or site_id is required", domain.ErrInvalidRequest)
	}

	sites, err := list[struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}](ctx, c, "/sites?search="+url.QueryEscape(name))
	if err != nil {
		return "", err
	}
	for _, st := range sites {
		if st.Name == name || st.DisplayName == name {
			return st.ID, nil
		}
	}
	if len(sites) > 0 {
		return sites[0].ID, nil
	}
	return "", fmt.Errorf("%w: sharepoint site %q", domain.ErrNotFound, name)
}
