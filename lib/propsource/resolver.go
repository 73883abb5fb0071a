// Package propsource resolves placement prop inputs: static values pass
// through, dynamic inputs are HCL expressions evaluated against named data
// sources.
//
//	r, err := propsource.New(
//	    propsource.WithSource("site", map[string]any{"title": "Docs"}, site.Cache),
//	)
//	engine := pagetree.New(registry, r)
//
// A record input {expression: "upper(site.title)"} then resolves to "DOCS",
// and the node inherits the cache metadata of the "site" source.
package propsource

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/pthm/pagetree"
	"github.com/pthm/pagetree/lib/ctxlog"
)

// Variables every expression can read in addition to the sources.
const (
	PreviewVar = "preview"
	SelfVar    = "self"
)

type source struct {
	value cty.Value
	cache pagetree.CacheMetadata
}

// Resolver implements pagetree.PropResolver. Safe for concurrent use;
// sources may be replaced while passes run.
type Resolver struct {
	mu      sync.RWMutex
	sources map[string]source
	funcs   map[string]function.Function
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithSource registers a named data source.
func WithSource(name string, value any, cache pagetree.CacheMetadata) Option {
	return func(r *Resolver) error {
		return r.setSource(name, value, cache)
	}
}

// WithFunction adds or replaces an expression function.
func WithFunction(name string, fn function.Function) Option {
	return func(r *Resolver) error {
		r.funcs[name] = fn
		return nil
	}
}

// New creates a resolver with the standard function set: upper, lower,
// trimspace, join, format, coalesce, length, replace and substr.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		sources: make(map[string]source),
		funcs: map[string]function.Function{
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"trimspace": stdlib.TrimSpaceFunc,
			"join":      stdlib.JoinFunc,
			"format":    stdlib.FormatFunc,
			"coalesce":  stdlib.CoalesceFunc,
			"length":    stdlib.LengthFunc,
			"replace":   stdlib.ReplaceFunc,
			"substr":    stdlib.SubstrFunc,
		},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetSource registers or replaces a named data source.
func (r *Resolver) SetSource(name string, value any, cache pagetree.CacheMetadata) error {
	return r.setSource(name, value, cache)
}

func (r *Resolver) setSource(name string, value any, cache pagetree.CacheMetadata) error {
	if !hclsyntax.ValidIdentifier(name) {
		return fmt.Errorf("propsource: invalid source name %q", name)
	}
	if name == PreviewVar || name == SelfVar {
		return fmt.Errorf("propsource: source name %q is reserved", name)
	}
	v, err := toCty(value)
	if err != nil {
		return fmt.Errorf("propsource: source %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = source{value: v, cache: cache}
	return nil
}

// Sources returns the registered source names, sorted.
func (r *Resolver) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.sources))
}

// ResolveProp implements pagetree.PropResolver.
//
// Static values resolve to themselves and never expire. Expressions resolve
// to their evaluated value, with the merged cache metadata of every source
// they reference.
func (r *Resolver) ResolveProp(ctx context.Context, src pagetree.PropSource, pc pagetree.PropContext) (pagetree.ResolvedProp, error) {
	if !src.IsDynamic() {
		return pagetree.ResolvedProp{Value: src.Value, Cache: pagetree.PermanentCache()}, nil
	}
	if err := ctx.Err(); err != nil {
		return pagetree.ResolvedProp{}, err
	}

	filename := "prop:" + pc.UUID + "/" + pc.Prop
	expr, diags := hclsyntax.ParseExpression([]byte(src.Expression), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return pagetree.ResolvedProp{}, fmt.Errorf("parse %q: %w", src.Expression, diags)
	}

	evalCtx, cache := r.evalContext(expr, pc)
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return pagetree.ResolvedProp{}, fmt.Errorf("evaluate %q: %w", src.Expression, diags)
	}
	native, err := toNative(val)
	if err != nil {
		return pagetree.ResolvedProp{}, fmt.Errorf("evaluate %q: %w", src.Expression, err)
	}

	ctxlog.FromContext(ctx).Debug("propsource: resolved expression",
		"uuid", pc.UUID,
		"prop", pc.Prop,
		"expression", src.Expression,
		"tags", strings.Join(cache.Tags, ","),
	)
	return pagetree.ResolvedProp{Value: native, Cache: cache}, nil
}

// evalContext builds the variables an expression can see and merges the
// cache metadata of the sources it references. Unknown references are left
// for evaluation to report.
func (r *Resolver) evalContext(expr hclsyntax.Expression, pc pagetree.PropContext) (*hcl.EvalContext, pagetree.CacheMetadata) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vars := map[string]cty.Value{
		PreviewVar: cty.BoolVal(pc.Preview),
		SelfVar: cty.ObjectVal(map[string]cty.Value{
			"uuid":      cty.StringVal(pc.UUID),
			"component": cty.StringVal(pc.ComponentID),
			"prop":      cty.StringVal(pc.Prop),
		}),
	}

	cache := pagetree.PermanentCache()
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		s, ok := r.sources[name]
		if !ok {
			continue
		}
		vars[name] = s.value
		cache = cache.Merge(s.cache)
	}

	return &hcl.EvalContext{Variables: vars, Functions: r.funcs}, cache
}
