package msgraph

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

const maxDepth = 8

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".html": true, ".htm": true, ".xml": true, ".yaml": true, ".yml": true,
}

type driveItem struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	WebURL  string    `json:"webUrl"`
	Folder  *struct{} `json:"folder"`
	File    *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Parent struct {
		Path string `json:"path"`
	} `json:"parentReference"`
}

// drive walks one document library rooted at base, e.g. /drives/{id} or
// /users/{upn}/drive.
type drive struct {
	c    *client
	base string
	src  source.Source
}

// load reads text files under folder ("" or "/" for the root) recursively.
func (d *drive) load(ctx context.Context, folder string) ([]chunk.Document, error) {
	first := d.base + "/root/children"
	if f := strings.Trim(folder, "/"); f != "" {
		first = d.base + "/root:/" + escapePath(f) + ":/children"
	}
	var docs []chunk.Document
	err := d.walk(ctx, first, 0, &docs)
	return docs, err
}

func (d *drive) walk(ctx context.Context, childrenPath string, depth int, docs *[]chunk.Document) error {
	items, err := list[driveItem](ctx, d.c, childrenPath)
	if err != nil {
		return err
	}
	for _, it := range items {
		switch {
		case it.Folder != nil:
			if depth+1 < maxDepth {
				if err := d.walk(ctx, d.base+"/items/"+it.ID+"/children", depth+1, docs); err != nil {
					return err
				}
			}
		case it.File != nil && textExtensions[strings.ToLower(path.Ext(it.Name))]:
			body, err := d.c.download(ctx, d.base+"/items/"+it.ID+"/content")
			if err != nil {
				return err
			}
			ext := strings.ToLower(path.Ext(it.Name))
			if ext == ".html" || ext == ".htm" {
				body = connectors.HTMLToText(body)
			}
			if strings.TrimSpace(body) == "" {
				continue
			}
			*docs = append(*docs, chunk.Document{
				Source: d.src,
				Path:   itemPath(it),
				Title:  it.Name,
				Text:   body,
				Metadata: map[string]string{
					"item_id":   it.ID,
					"file_name": it.Name,
				},
			})
		}
	}
	return nil
}

func itemPath(it driveItem) string {
	if it.WebURL != "" {
		return it.WebURL
	}
	p := it.Parent.Path
	if i := strings.Index(p, ":"); i >= 0 {
		p = p[i+1:]
	}
	return strings.TrimRight(p, "/") + "/" + it.Name
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
