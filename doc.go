// Package pagetree turns a flat, persisted list of component placements into
// a render-ready tree of descriptors.
//
// A page is stored as a flat slice of PlacementRecord values. Each record
// names a component (by id and optional version), its parent placement and
// the named slot of the parent it sits in, plus its prop inputs. Records
// may arrive in any order.
//
// # Pipeline
//
// One render pass runs three stages:
//
//   - Linearize rebuilds the canonical forest. Siblings keep the relative
//     order of the flat list, slots follow the definition's declared order
//     and every node gets a stable path key ("0", "0:body:1", ...).
//   - Hydrate resolves each node's definition and props and fills every
//     declared slot with children or its default content.
//   - Assemble produces one Descriptor per node, with instrumentation
//     markers and cache metadata aggregated over the subtree.
//
// Engine ties the stages together:
//
//	engine := pagetree.New(registry, propsource.New())
//	page, err := engine.Run(ctx, records, pagetree.IsPreview(r))
//	if err != nil {
//	    // structural error: nothing rendered
//	}
//	pagetree.Render(w, r, page, renderers)
//
// # Collaborators
//
// The engine does not store anything. Definitions come from a
// DefinitionResolver (see lib/definition for a versioned registry) and prop
// values from a PropResolver (see lib/propsource for an HCL expression
// resolver). Both are called from inside a pass and must be safe for
// concurrent use if the Engine is shared.
//
// # Errors
//
// Structural problems (duplicate uuid, unknown parent, cycle, undeclared
// slot, ...) abort the pass with a *StructureError and no partial tree. An
// unresolvable definition is a *DefinitionLookupError; it aborts too unless
// WithSkipBrokenSubtrees drops that subtree. A failing prop produces a
// *PropResolutionError local to its node.
//
// # Markers
//
// Every node, every declared slot and every inline prop is bracketed by
// HTML comment markers carrying the node uuid, so an editing surface can map
// rendered DOM back to placements:
//
//	<!-- pagetree-start:{uuid} --> ... <!-- pagetree-end:{uuid} -->
//	<!-- slot-start:{uuid}/{slot} --> ... <!-- slot-end:{uuid}/{slot} -->
//	<!-- prop-start:{uuid}/{prop} --> ... <!-- prop-end:{uuid}/{prop} -->
//
// # Caching
//
// Each descriptor carries a CacheMetadata triple: the union of tags and
// contexts and the minimum max-age over its definition, its resolved props
// and its descendants. CacheHeaders maps a triple to HTTP headers.
package pagetree
