// Package query translates key ranges into SQL predicates over the flat
// key/value table.
package query

import (
	"strings"
)

// NoLimit is SQLite's "no row cap" LIMIT value.
const NoLimit = -1

// Operator is a comparison applied to the key column.
type Operator string

const (
	OpGT  Operator = ">"
	OpGTE Operator = ">="
	OpLT  Operator = "<"
	OpLTE Operator = "<="
)

// Range describes an ordered subset of keys. Bounds are raw table keys, i.e.
// already namespaced by the caller. Setting both Gt and Gte (or Lt and Lte)
// is a caller error; the inclusive bound wins.
type Range struct {
	Gt, Gte *string
	Lt, Lte *string

	// Prefix restricts the range to keys starting with it.
	Prefix string

	Reverse bool

	// Limit caps the number of rows. Negative means unbounded.
	Limit int
}

// Condition is a single "key <op> ?" term.
type Condition struct {
	Op  Operator
	Arg string
}

// Clause is a translated Range: conditions ANDed together, a direction and a
// row cap.
type Clause struct {
	Conditions []Condition
	Desc       bool
	Limit      int
}

// Translate converts r into a Clause.
func Translate(r Range) Clause {
	var c Clause

	switch {
	case r.Gte != nil:
		c.Conditions = append(c.Conditions, Condition{OpGTE, *r.Gte})
	case r.Gt != nil:
		c.Conditions = append(c.Conditions, Condition{OpGT, *r.Gt})
	}

	switch {
	case r.Lte != nil:
		c.Conditions = append(c.Conditions, Condition{OpLTE, *r.Lte})
	case r.Lt != nil:
		c.Conditions = append(c.Conditions, Condition{OpLT, *r.Lt})
	}

	// A prefix is a half-open range so the unique key index can serve it.
	if r.Prefix != "" {
		c.Conditions = append(c.Conditions, Condition{OpGTE, r.Prefix})
		if upper, ok := Successor(r.Prefix); ok {
			c.Conditions = append(c.Conditions, Condition{OpLT, upper})
		}
	}

	c.Desc = r.Reverse
	c.Limit = r.Limit
	if c.Limit < 0 {
		c.Limit = NoLimit
	}
	return c
}

// Where renders the predicate, without the WHERE keyword. It is empty when
// the clause matches every key.
func (c Clause) Where() string {
	parts := make([]string, len(c.Conditions))
	for i, cond := range c.Conditions {
		parts[i] = "key " + string(cond.Op) + " ?"
	}
	return strings.Join(parts, " AND ")
}

// SQL renders the clause as a suffix for a SELECT over the table:
// an optional WHERE, the ORDER BY and a parameterized LIMIT.
func (c Clause) SQL() string {
	var b strings.Builder
	if where := c.Where(); where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY key ")
	if c.Desc {
		b.WriteString("DESC")
	} else {
		b.WriteString("ASC")
	}
	b.WriteString(" LIMIT ?")
	return b.String()
}

// Args returns the bind parameters matching SQL, in order.
func (c Clause) Args() []any {
	args := make([]any, 0, len(c.Conditions)+1)
	for _, cond := range c.Conditions {
		args = append(args, cond.Arg)
	}
	return append(args, c.Limit)
}

// Successor returns the smallest string greater than every string starting
// with p, under bytewise order. It reports false when no such string exists
// (p is empty or made only of 0xff bytes).
func Successor(p string) (string, bool) {
	b := []byte(p)
	for len(b) > 0 && b[len(b)-1] == 0xff {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return "", false
	}
	b[len(b)-1]++
	return string(b), true
}

// QuoteIdent quotes a table or index name for use in SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholders returns n comma separated bind markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
