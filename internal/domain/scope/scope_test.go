package scope

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

func TestIsValid(t *testing.T) {
	for _, s := range []Scope{SQL, Vector, All, KG} {
		if !s.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", s)
		}
	}
	for _, s := range []Scope{"", "graph", "VECTOR"} {
		if s.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", s)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("", Vector)
	if err != nil || got != Vector {
		t.Errorf("Parse(\"\") = %q, %v", got, err)
	}

	got, err = Parse(" KG ", Vector)
	if err != nil || got != KG {
		t.Errorf("Parse(KG) = %q, %v", got, err)
	}

	if _, err := Parse("everything", Vector); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
