package db

import (
	"slices"
	"testing"
)

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"What's the Q3 revenue, and the Q3 margin?", []string{"q3", "revenue", "margin"}},
		{"restart payment-service", []string{"restart", "payment", "service"}},
		{"the a of", []string{}},
		{"", []string{}},
		{"Überweisung Gebühr", []string{"überweisung", "gebühr"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := QueryTerms(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
