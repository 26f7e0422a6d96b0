package level

import (
	"github.com/liliang-cn/sqlevel/internal/prefix"
	"github.com/liliang-cn/sqlevel/internal/query"
)

// Range selects an ordered subset of the keys of a Level. Keys are relative
// to the Level: a sublevel's namespace is applied internally.
//
// Set at most one of Gt/Gte and one of Lt/Lte. A nil or negative Limit means
// unbounded; Max(0) selects nothing.
type Range struct {
	Gt  *string
	Gte *string
	Lt  *string
	Lte *string

	// Prefix keeps only keys starting with it.
	Prefix string

	Reverse bool
	Limit   *int
}

// Bound returns a pointer to key, for use as a Range bound.
func Bound(key string) *string {
	return &key
}

// Max returns a pointer to n, for use as a Range limit.
func Max(n int) *int {
	return &n
}

// All is the Range covering every key of a Level.
func All() Range {
	return Range{}
}

// WithPrefix returns the Range of keys starting with p.
func WithPrefix(p string) Range {
	return Range{Prefix: p}
}

func (r Range) limit() int {
	if r.Limit == nil || *r.Limit < 0 {
		return query.NoLimit
	}
	return *r.Limit
}

// clause namespaces the bounds under ns and translates the result.
func (r Range) clause(ns string) query.Clause {
	return query.Translate(query.Range{
		Gt:      namespaced(r.Gt, ns),
		Gte:     namespaced(r.Gte, ns),
		Lt:      namespaced(r.Lt, ns),
		Lte:     namespaced(r.Lte, ns),
		Prefix:  prefix.Add(r.Prefix, ns),
		Reverse: r.Reverse,
		Limit:   r.limit(),
	})
}

func namespaced(bound *string, ns string) *string {
	if bound == nil {
		return nil
	}
	k := prefix.Add(*bound, ns)
	return &k
}
