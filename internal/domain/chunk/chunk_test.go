package chunk

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

func TestID_Deterministic(t *testing.T) {
	a := ID(source.Confluence, "/spaces/ENG/pages/1", "hello")
	b := ID(source.Confluence, "/spaces/ENG/pages/1", "hello")
	if a != b {
		t.Fatal("same inputs must give the same id")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
}

func TestID_FieldBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	if ID(source.Teams, "ab", "c") == ID(source.Teams, "a", "bc") {
		t.Error("expected separator between path and text")
	}
	if ID(source.Teams, "p", "x") == ID(source.OneDrive, "p", "x") {
		t.Error("expected source to be part of the id")
	}
}

func TestNew(t *testing.T) {
	meta := map[string]string{"title": "Runbook"}
	c, err := New(source.SharePoint, "/docs/runbook.md", "restart the pod", meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID() != ID(source.SharePoint, "/docs/runbook.md", "restart the pod") {
		t.Error("id must be derived from provenance and text")
	}

	meta["title"] = "changed"
	if c.Meta("title") != "Runbook" {
		t.Error("chunk must not alias caller metadata")
	}
	got := c.Metadata()
	got["title"] = "changed"
	if c.Meta("title") != "Runbook" {
		t.Error("Metadata must return a copy")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(source.Teams, "p", "   ", nil); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for blank text, got %v", err)
	}
	if _, err := New("slack", "p", "x", nil); !errors.Is(err, domain.ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}
}
