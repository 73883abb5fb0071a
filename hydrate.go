package pagetree

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/pthm/pagetree/lib/ctxlog"
)

type hydrator struct {
	ctx     context.Context
	props   PropResolver
	defs    DefinitionResolver
	opts    *options
	preview bool

	propErrs []error
	diags    []error
}

// Hydrate resolves every node's definition and props and fills every
// declared slot, in definition order, with either its hydrated children or
// the definition's default content.
//
// A node's own props are resolved before its slots are descended into. A
// prop that fails to resolve yields a *PropResolutionError that is local to
// its node: under PropErrorsPlaceholder the prop falls back to its declared
// default and the pass continues; under PropErrorsEscalate the whole tree
// is still walked and then all prop errors are returned joined.
//
// The walk is kind-agnostic. Diagnostics carry definition lookup failures of
// subtrees skipped under WithSkipBrokenSubtrees.
func Hydrate(ctx context.Context, roots []CanonicalNode, props PropResolver, defs DefinitionResolver, preview bool, opts ...Option) ([]HydratedNode, []error, error) {
	h := &hydrator{
		ctx:     ctx,
		props:   props,
		defs:    defs,
		opts:    buildOptions(opts),
		preview: preview,
	}

	out := make([]HydratedNode, 0, len(roots))
	for _, root := range roots {
		node, ok, err := h.hydrate(root)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			out = append(out, node)
		}
	}

	ctxlog.FromContext(ctx).Debug("hydrate: tree hydrated", "roots", len(out), "prop_errors", len(h.propErrs))

	if h.opts.propErrors == PropErrorsEscalate && len(h.propErrs) > 0 {
		return out, h.diags, errors.Join(h.propErrs...)
	}
	return out, h.diags, nil
}

func (h *hydrator) hydrate(n CanonicalNode) (HydratedNode, bool, error) {
	def, err := h.defs.ResolveDefinition(h.ctx, n.ComponentID, n.Version)
	if err == nil && def == nil {
		err = errors.New("no definition returned")
	}
	if err != nil {
		lookupErr := &DefinitionLookupError{UUID: n.UUID, ComponentID: n.ComponentID, Version: n.Version, Err: err}
		if !h.opts.skipBroken {
			return HydratedNode{}, false, lookupErr
		}
		ctxlog.FromContext(h.ctx).Warn("hydrate: skipping subtree", "uuid", n.UUID, "error", lookupErr)
		h.diags = append(h.diags, lookupErr)
		return HydratedNode{}, false, nil
	}

	out := HydratedNode{
		Node:       n,
		Definition: def,
		Props:      make(map[string]ResolvedProp, len(n.Inputs)+len(def.Props)),
	}
	h.resolveProps(&out)

	for _, cs := range n.Slots {
		if _, declared := def.Slot(cs.Name); !declared && len(cs.Children) > 0 {
			return HydratedNode{}, false, &StructureError{Reason: ReasonUndeclaredSlot, UUID: cs.Children[0].UUID, Ref: cs.Name}
		}
	}

	out.Slots = make([]HydratedSlot, 0, len(def.Slots))
	for _, slot := range def.Slots {
		hs := HydratedSlot{Name: slot.Name}
		for _, child := range n.Children(slot.Name) {
			hc, ok, err := h.hydrate(child)
			if err != nil {
				return HydratedNode{}, false, err
			}
			if ok {
				hs.Children = append(hs.Children, hc)
			}
		}
		if len(hs.Children) == 0 {
			hs.DefaultContent = slot.DefaultContent
			hs.UsedDefault = true
		}
		out.Slots = append(out.Slots, hs)
	}

	return out, true, nil
}

// resolveProps resolves the node's inputs in name order, then fills declared
// props that have no input from their defaults.
func (h *hydrator) resolveProps(out *HydratedNode) {
	n, def := out.Node, out.Definition

	for _, name := range slices.Sorted(maps.Keys(n.Inputs)) {
		pc := PropContext{UUID: n.UUID, ComponentID: n.ComponentID, Prop: name, Preview: h.preview}
		rp, err := h.props.ResolveProp(h.ctx, n.Inputs[name], pc)
		if err != nil {
			propErr := &PropResolutionError{UUID: n.UUID, Prop: name, Err: err}
			ctxlog.FromContext(h.ctx).Warn("hydrate: prop resolution failed", "uuid", n.UUID, "prop", name, "error", err)
			out.PropErrors = append(out.PropErrors, propErr)
			h.propErrs = append(h.propErrs, propErr)

			rp = ResolvedProp{Cache: PermanentCache()}
			if pd, ok := def.Prop(name); ok {
				rp.Value = pd.Default
			}
		}
		out.Props[name] = rp
	}

	for _, pd := range def.Props {
		if _, ok := out.Props[pd.Name]; ok || pd.Default == nil {
			continue
		}
		out.Props[pd.Name] = ResolvedProp{Value: pd.Default, Cache: PermanentCache()}
	}
}

// String summarizes a hydrated node for logs and test failures.
func (n HydratedNode) String() string {
	return fmt.Sprintf("%s(%s@%s %s)", n.Node.UUID, n.Node.ComponentID, n.Node.Version, n.Node.PathKey)
}
