package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// scope is the state a derived handler carries: its level plus the
// attributes and groups added through With and WithGroup.
type scope struct {
	level  slog.Leveler
	attrs  []slog.Attr // already nested under the groups open when added
	groups []string
}

func (s scope) enabled(level slog.Level) bool {
	return level >= s.level.Level()
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	for i := len(s.groups) - 1; i >= 0 && len(attrs) > 0; i-- {
		attrs = []slog.Attr{{Key: s.groups[i], Value: slog.GroupValue(attrs...)}}
	}
	s.attrs = append(slices.Clip(s.attrs), attrs...)
	return s
}

func (s scope) withGroup(name string) scope {
	if name != "" {
		s.groups = append(slices.Clip(s.groups), name)
	}
	return s
}

// flatten collects the scope and record attributes into dot-keyed values.
// The top-level "module" attribute is returned separately.
func (s scope) flatten(r slog.Record) (module string, attrs map[string]any) {
	attrs = make(map[string]any, len(s.attrs)+r.NumAttrs())
	for _, a := range s.attrs {
		if a.Key == "module" {
			module = a.Value.String()
			continue
		}
		flattenAttr(attrs, nil, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(s.groups) == 0 {
			module = a.Value.String()
			return true
		}
		flattenAttr(attrs, s.groups, a)
		return true
	})
	return module, attrs
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

// NewMultiHandler combines handlers into one. Nil handlers are dropped and
// a lone handler is returned unwrapped.
func NewMultiHandler(handlers ...slog.Handler) slog.Handler {
	hs := slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
	if len(hs) == 1 {
		return hs[0]
	}
	return fanout(hs)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle passes a clone of r to each handler and joins their errors.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) derive(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
