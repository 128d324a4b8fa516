package source

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"confluence", Confluence, false},
		{" SharePoint ", SharePoint, false},
		{"onedrive", OneDrive, false},
		{"teams", Teams, false},
		{"slack", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrUnsupportedSource) {
				t.Errorf("Parse(%q): expected ErrUnsupportedSource, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestParseList_DedupKeepsOrder(t *testing.T) {
	got, err := ParseList([]string{"teams", "", "confluence", "TEAMS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != Teams || got[1] != Confluence {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestParseList_Empty(t *testing.T) {
	got, err := ParseList(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v %v", got, err)
	}
}

func TestAll_IsCopy(t *testing.T) {
	a := All()
	a[0] = "mutated"
	if All()[0] != Confluence {
		t.Error("All must return a copy")
	}
}
