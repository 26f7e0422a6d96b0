package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		sql  string
		args []any
	}{
		{
			name: "everything",
			r:    Range{Limit: -1},
			sql:  " ORDER BY key ASC LIMIT ?",
			args: []any{-1},
		},
		{
			name: "lower inclusive upper exclusive reversed",
			r:    Range{Gte: str("2"), Lt: str("5"), Reverse: true, Limit: 2},
			sql:  " WHERE key >= ? AND key < ? ORDER BY key DESC LIMIT ?",
			args: []any{"2", "5", 2},
		},
		{
			name: "exclusive lower inclusive upper",
			r:    Range{Gt: str("a"), Lte: str("c"), Limit: -5},
			sql:  " WHERE key > ? AND key <= ? ORDER BY key ASC LIMIT ?",
			args: []any{"a", "c", -1},
		},
		{
			name: "prefix only",
			r:    Range{Prefix: "!a!", Limit: -1},
			sql:  " WHERE key >= ? AND key < ? ORDER BY key ASC LIMIT ?",
			args: []any{"!a!", "!a\"", -1},
		},
		{
			name: "prefix and bounds",
			r:    Range{Gt: str("!a!k"), Prefix: "!a!", Limit: 10},
			sql:  " WHERE key > ? AND key >= ? AND key < ? ORDER BY key ASC LIMIT ?",
			args: []any{"!a!k", "!a!", "!a\"", 10},
		},
		{
			name: "inclusive bound wins",
			r:    Range{Gt: str("a"), Gte: str("b"), Lt: str("y"), Lte: str("z"), Limit: -1},
			sql:  " WHERE key >= ? AND key <= ? ORDER BY key ASC LIMIT ?",
			args: []any{"b", "z", -1},
		},
		{
			name: "zero limit is kept",
			r:    Range{Limit: 0},
			sql:  " ORDER BY key ASC LIMIT ?",
			args: []any{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Translate(tt.r)
			assert.Equal(t, tt.sql, c.SQL())
			assert.Equal(t, tt.args, c.Args())
		})
	}
}

func TestSuccessor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", false},
		{"a", "b", true},
		{"!a!", "!a\"", true},
		{"a\xff", "b", true},
		{"\xff\xff", "", false},
	}
	for _, tt := range tests {
		got, ok := Successor(tt.in)
		assert.Equal(t, tt.ok, ok, "Successor(%q)", tt.in)
		assert.Equal(t, tt.want, got, "Successor(%q)", tt.in)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Data"`, QuoteIdent("Data"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?,?,?", Placeholders(3))
}
