package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Document is a raw item produced by a connector before splitting.
type Document struct {
	Source   source.Source
	Path     string
	Title    string
	Text     string
	Metadata map[string]string
}

// Chunk is an immutable unit of ingested text with source provenance.
type Chunk struct {
	id       string
	text     string
	source   source.Source
	path     string
	metadata map[string]string
}

// ID derives the stable identifier of a chunk from its provenance and content,
// so re-ingesting the same text overwrites instead of duplicating.
func ID(src source.Source, path, text string) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// New creates a chunk with a derived id.
func New(src source.Source, path, text string, metadata map[string]string) (Chunk, error) {
	if !src.IsValid() {
		return Chunk{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, src)
	}
	if strings.TrimSpace(text) == "" {
		return Chunk{}, fmt.Errorf("%w: chunk text is empty", domain.ErrInvalidRequest)
	}
	return Chunk{
		id:       ID(src, path, text),
		text:     text,
		source:   src,
		path:     path,
		metadata: maps.Clone(metadata),
	}, nil
}

// Reconstruct restores a chunk from storage without re-deriving the id.
// Graph rows and other synthetic evidence also come through here.
func Reconstruct(id, text string, src source.Source, path string, metadata map[string]string) Chunk {
	return Chunk{id: id, text: text, source: src, path: path, metadata: metadata}
}

// ID returns the chunk identifier.
func (c Chunk) ID() string { return c.id }

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// Source returns the ingestion source.
func (c Chunk) Source() source.Source { return c.source }

// Path returns the human-readable origin locator.
func (c Chunk) Path() string { return c.path }

// Metadata returns a copy of the metadata map.
func (c Chunk) Metadata() map[string]string { return maps.Clone(c.metadata) }

// Meta returns a single metadata value.
func (c Chunk) Meta(key string) string { return c.metadata[key] }
