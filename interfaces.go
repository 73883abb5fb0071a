package pagetree

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
)

// DefinitionResolver is the component definition lookup collaborator.
//
// An empty version asks for the component's currently active version. The
// returned definition carries the version that was actually resolved, so a
// tree built from it records an explicit version for every node.
//
// Implementations are expected to cache cheaply: the engine calls
// ResolveDefinition for every node of every pass without memoizing.
type DefinitionResolver interface {
	ResolveDefinition(ctx context.Context, componentID, version string) (*Definition, error)
}

// DefinitionResolverFunc adapts a function to DefinitionResolver.
type DefinitionResolverFunc func(ctx context.Context, componentID, version string) (*Definition, error)

// ResolveDefinition calls f.
func (f DefinitionResolverFunc) ResolveDefinition(ctx context.Context, componentID, version string) (*Definition, error) {
	return f(ctx, componentID, version)
}

// PropContext tells a prop resolver which prop of which node it resolves.
type PropContext struct {
	UUID        string
	ComponentID string
	Prop        string
	Preview     bool
}

// PropResolver is the prop source resolver collaborator. It turns one
// stored prop source into a value plus the cache metadata of whatever data
// the value was read from.
type PropResolver interface {
	ResolveProp(ctx context.Context, src PropSource, pc PropContext) (ResolvedProp, error)
}

// PropResolverFunc adapts a function to PropResolver.
type PropResolverFunc func(ctx context.Context, src PropSource, pc PropContext) (ResolvedProp, error)

// ResolveProp calls f.
func (f PropResolverFunc) ResolveProp(ctx context.Context, src PropSource, pc PropContext) (ResolvedProp, error) {
	return f(ctx, src, pc)
}

// StaticProps resolves static sources verbatim and rejects expressions. It
// is enough for trees that never use dynamic props.
var StaticProps PropResolver = PropResolverFunc(func(_ context.Context, src PropSource, _ PropContext) (ResolvedProp, error) {
	if src.IsDynamic() {
		return ResolvedProp{}, fmt.Errorf("expression %q: no dynamic prop resolver configured", src.Expression)
	}
	return ResolvedProp{Value: src.Value, Cache: PermanentCache()}, nil
})

// Renderer is a kind-specific rendering backend. It receives the
// descriptor and the already-instrumented markup of each slot, keyed by
// slot name, and produces the node's own markup.
//
// Render should be pure: it reads the descriptor and writes HTML without
// side effects. Node start/end markers are written around its output by
// Markup, so renderers never emit them.
type Renderer interface {
	Render(ctx context.Context, d Descriptor, slots map[string]templ.Component) templ.Component
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, d Descriptor, slots map[string]templ.Component) templ.Component

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, d Descriptor, slots map[string]templ.Component) templ.Component {
	return f(ctx, d, slots)
}

// Renderers maps each kind to its rendering backend. Kinds without an entry
// use FallbackRenderer.
type Renderers map[Kind]Renderer
