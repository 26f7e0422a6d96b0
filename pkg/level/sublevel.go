package level

import (
	"fmt"
	"strings"
)

type sublevelOptions struct {
	separator string
}

// SublevelOption configures a sublevel.
type SublevelOption func(*sublevelOptions)

// WithSeparator overrides the separator wrapping the sublevel name.
func WithSeparator(sep string) SublevelOption {
	return func(o *sublevelOptions) {
		o.separator = sep
	}
}

// Sublevel returns a namespaced view of l. Its keys are stored under
// l.Prefix() + sep + name + sep and are returned without that prefix.
// Sublevels share the root's connection and iterator registry; nesting
// composes prefixes in creation order.
//
// The name must be non-empty and must not contain the separator, so sibling
// namespaces like "a" and "ab" never overlap.
func (l *Level) Sublevel(name string, opts ...SublevelOption) (*Level, error) {
	o := sublevelOptions{separator: l.cfg.Separator}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case o.separator == "":
		return nil, wrapError("sublevel", CodeInvalidValue, fmt.Errorf("%w: empty separator", ErrInvalidSublevel))
	case name == "":
		return nil, wrapError("sublevel", CodeInvalidValue, fmt.Errorf("%w: empty name", ErrInvalidSublevel))
	case strings.Contains(name, o.separator):
		return nil, wrapError("sublevel", CodeInvalidValue, fmt.Errorf("%w: %q contains separator %q", ErrInvalidSublevel, name, o.separator))
	}

	p := l.prefix + o.separator + name + o.separator
	return &Level{
		root:   l.root,
		parent: l,
		name:   name,
		prefix: p,
		cfg:    l.cfg,
		gw:     l.gw,
		reg:    l.reg,
		log:    l.root.log.With("sublevel", p),
	}, nil
}
