package treemodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringMatches(t *testing.T) {
	tests := []struct {
		candidate string
		query     string
		flags     MatchFlags
		want      bool
	}{
		{"libc.so", "libc", 0, true},
		{"libc.so", "c.s", 0, true},
		{"libc.so", "LIBC", 0, false},
		{"libc.so", "LIBC", MatchCaseInsensitive, true},
		{"libc.so", "c.so", MatchAtStart, false},
		{"libc.so", "lib", MatchAtStart, true},
		{"libc.so", "libc", MatchFull, false},
		{"libc.so", "LIBC.SO", MatchFull | MatchCaseInsensitive, true},
	}

	for _, tt := range tests {
		got := StringMatches(tt.candidate, tt.query, tt.flags)
		assert.Equal(t, tt.want, got, "StringMatches(%q, %q, %b)", tt.candidate, tt.query, tt.flags)
	}
}

func TestIndex_ZeroValueIsInvalid(t *testing.T) {
	var idx Index
	assert.False(t, idx.IsValid())
	assert.False(t, idx.Sibling(1).IsValid())
}

func TestIndex_Sibling(t *testing.T) {
	idx := NewIndex(2, 0, 17, 5)
	sib := idx.Sibling(1)

	assert.True(t, sib.IsValid())
	assert.Equal(t, 2, sib.Row())
	assert.Equal(t, 1, sib.Column())
	assert.Equal(t, 17, sib.Node())
	assert.Equal(t, uint64(5), sib.Generation())
}
