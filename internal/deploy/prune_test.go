package deploy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectPrunable(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		current string
		retain  int
		want    []string
	}{
		{
			name:    "keeps retain newest",
			entries: []string{"e", "d", "c", "b", "a"},
			current: "e",
			retain:  3,
			want:    []string{"b", "a"},
		},
		{
			name:    "current never selected even when old",
			entries: []string{"e", "d", "c", "b", "a"},
			current: "a",
			retain:  2,
			want:    []string{"c", "b"},
		},
		{
			name:    "fewer entries than retain",
			entries: []string{"b", "a"},
			current: "b",
			retain:  5,
			want:    nil,
		},
		{
			name:    "retain below one clamps to one",
			entries: []string{"c", "b", "a"},
			current: "c",
			retain:  0,
			want:    []string{"b", "a"},
		},
		{
			name:    "empty listing",
			entries: nil,
			current: "a",
			retain:  3,
			want:    nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, selectPrunable(tc.entries, tc.current, tc.retain))
		})
	}
}
