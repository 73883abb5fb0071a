package pagetree

import (
	"context"
	"fmt"
	"html"
	"maps"
	"slices"

	"github.com/pthm/pagetree/lib/ctxlog"
)

// PreviewProp is the prop every descriptor receives telling its renderer
// whether it renders a draft preview. The name is reserved: it always holds
// the pass's preview flag, a record input of the same name is ignored, and
// lib/definition rejects props declared with it.
const PreviewProp = "isPreview"

// kindAssembler turns the shared descriptor fields into one kind's variant.
type kindAssembler func(a *assembler, base DescriptorBase, n HydratedNode) Descriptor

var kindAssemblers = map[Kind]kindAssembler{
	KindDesign: assembleDesign,
	KindBlock:  assembleBlock,
	KindCode:   assembleCode,
}

type assembler struct {
	ctx     context.Context
	opts    *options
	preview bool
}

// Assemble converts a hydrated node into its descriptor tree.
//
// Every descriptor gets node markers carrying its uuid, markers around each
// inline-renderable prop value and around every declared slot (empty slots
// included). Cache metadata is aggregated bottom-up: tags and contexts are
// the union over the node's definition, its resolved props and all
// descendants, and max-age is the subtree minimum.
//
// preview is threaded unchanged to every descendant: each node sees it as
// the PreviewProp prop, and code components point at the draft-serving
// locator instead of the published script.
func Assemble(ctx context.Context, n HydratedNode, preview bool, opts ...Option) (Descriptor, error) {
	a := &assembler{ctx: ctx, opts: buildOptions(opts), preview: preview}
	return a.assemble(n)
}

func (a *assembler) assemble(n HydratedNode) (Descriptor, error) {
	def := n.Definition
	if def == nil {
		return nil, fmt.Errorf("pagetree: assemble %q: node is not hydrated", n.Node.UUID)
	}
	build, ok := kindAssemblers[def.Kind]
	if !ok {
		return nil, fmt.Errorf("%w %q for %q", ErrUnknownKind, def.Kind, n.Node.UUID)
	}

	uuid := n.Node.UUID
	base := DescriptorBase{
		Type:        def.Kind,
		UUID:        uuid,
		ComponentID: n.Node.ComponentID,
		Version:     n.Node.Version,
		PathKey:     n.Node.PathKey,
		Preview:     a.preview,
		Props:       make(map[string]any, len(n.Props)+1),
		Markers:     NodeMarkers(uuid),
	}

	cache := PermanentCache().Merge(def.Cache)
	for _, name := range slices.Sorted(maps.Keys(n.Props)) {
		if name == PreviewProp {
			ctxlog.FromContext(a.ctx).Warn("assemble: input shadows reserved prop", "uuid", uuid, "prop", name)
			continue
		}
		rp := n.Props[name]
		base.Props[name] = rp.Value
		cache = cache.Merge(rp.Cache)
	}
	base.Props[PreviewProp] = a.preview

	for _, pd := range def.Props {
		if !pd.Inline {
			continue
		}
		rp, ok := n.Props[pd.Name]
		if !ok {
			continue
		}
		if base.Inline == nil {
			base.Inline = make(map[string]InlineProp)
		}
		text := a.inlineText(pd, rp.Value)
		m := PropMarkers(uuid, pd.Name)
		base.Inline[pd.Name] = InlineProp{Markers: m, Text: text, Markup: m.Wrap(text)}
	}

	base.Slots = make([]SlotDescriptor, 0, len(n.Slots))
	for _, hs := range n.Slots {
		sd := SlotDescriptor{
			Name:           hs.Name,
			Markers:        SlotMarkers(uuid, hs.Name),
			DefaultContent: hs.DefaultContent,
			UsedDefault:    hs.UsedDefault,
		}
		for _, child := range hs.Children {
			cd, err := a.assemble(child)
			if err != nil {
				return nil, err
			}
			sd.Children = append(sd.Children, cd)
			cache = cache.Merge(cd.Base().Cache)
		}
		base.Slots = append(base.Slots, sd)
	}

	for _, pe := range n.PropErrors {
		base.Errors = append(base.Errors, pe.Error())
	}
	base.Cache = cache

	ctxlog.FromContext(a.ctx).Debug("assemble: node", "uuid", uuid, "kind", def.Kind, "path", n.Node.PathKey)
	return build(a, base, n), nil
}

// inlineText renders a prop value as the exact text substituted between
// its markers.
func (a *assembler) inlineText(pd PropDefinition, v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	if pd.Format == FormatHTML {
		return a.opts.policy.Sanitize(s)
	}
	return html.EscapeString(s)
}

func assembleDesign(_ *assembler, base DescriptorBase, n HydratedNode) Descriptor {
	return &DesignDescriptor{DescriptorBase: base, Label: n.Definition.Label}
}

func assembleBlock(_ *assembler, base DescriptorBase, n HydratedNode) Descriptor {
	settings := make(map[string]any, len(n.Props))
	for name, rp := range n.Props {
		if name == PreviewProp {
			continue
		}
		settings[name] = rp.Value
	}
	return &BlockDescriptor{DescriptorBase: base, PluginID: n.Definition.ID, Settings: settings}
}

func assembleCode(a *assembler, base DescriptorBase, n HydratedNode) Descriptor {
	script := a.opts.locator.Published(n.Definition)
	if a.preview {
		script = a.opts.locator.Draft(n.Definition)
	}
	return &CodeDescriptor{DescriptorBase: base, ScriptURL: script}
}
