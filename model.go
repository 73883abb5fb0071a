package pagetree

// Kind tags the three component families the engine reconciles.
type Kind string

const (
	// KindDesign is a design component with declared props and slots.
	KindDesign Kind = "design"

	// KindBlock is a legacy block widget; its props are block settings.
	KindBlock Kind = "block"

	// KindCode is a user-authored code component backed by a compiled script.
	KindCode Kind = "code"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDesign, KindBlock, KindCode:
		return true
	}
	return false
}

// PlacementRecord describes one component instance: its identity, its
// location in the tree and its inputs.
//
// ParentUUID is empty for roots. Slot is required exactly when ParentUUID is
// set and must name a slot declared by the parent's resolved definition.
type PlacementRecord struct {
	UUID        string                `json:"uuid" yaml:"uuid"`
	ComponentID string                `json:"component_id" yaml:"component_id"`
	Version     string                `json:"version,omitempty" yaml:"version,omitempty"`
	ParentUUID  string                `json:"parent_uuid,omitempty" yaml:"parent_uuid,omitempty"`
	Slot        string                `json:"slot,omitempty" yaml:"slot,omitempty"`
	Inputs      map[string]PropSource `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// IsRoot reports whether the record sits at the top of the forest.
func (r PlacementRecord) IsRoot() bool {
	return r.ParentUUID == ""
}

// PropSource is the stored specification of one prop value: either a
// static value or a dynamic expression.
type PropSource struct {
	Value      any    `json:"value,omitempty" yaml:"value,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Static returns a static prop source.
func Static(v any) PropSource {
	return PropSource{Value: v}
}

// Expr returns a dynamic prop source.
func Expr(expression string) PropSource {
	return PropSource{Expression: expression}
}

// IsDynamic reports whether the source must be evaluated.
func (s PropSource) IsDynamic() bool {
	return s.Expression != ""
}

// PropFormat controls how an inline-renderable prop is substituted.
type PropFormat string

const (
	// FormatText props are HTML-escaped.
	FormatText PropFormat = "text"

	// FormatHTML props are sanitized and substituted as markup.
	FormatHTML PropFormat = "html"
)

// Definition is what the definition lookup returns for one component
// version.
type Definition struct {
	ID      string           `json:"id" yaml:"id"`
	Version string           `json:"version" yaml:"version"`
	Kind    Kind             `json:"kind" yaml:"kind"`
	Label   string           `json:"label,omitempty" yaml:"label,omitempty"`
	Slots   []SlotDefinition `json:"slots,omitempty" yaml:"slots,omitempty"`
	Props   []PropDefinition `json:"props,omitempty" yaml:"props,omitempty"`

	// Cache is this definition's own contribution to the page cache. The
	// zero value is uncacheable (MaxAge 0) and makes every page containing
	// the component no-store; set PermanentCache() for static components.
	// Definition files that omit the cache section load as permanent.
	Cache CacheMetadata `json:"cache" yaml:"cache"`

	// Script is the published script location for code components. When
	// empty the asset locator derives one.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`
}

// SlotDefinition declares a named insertion point and the content rendered
// when nothing is placed in it.
type SlotDefinition struct {
	Name           string `json:"name" yaml:"name"`
	DefaultContent string `json:"default_content,omitempty" yaml:"default_content,omitempty"`
}

// PropDefinition declares one prop.
type PropDefinition struct {
	Name    string     `json:"name" yaml:"name"`
	Inline  bool       `json:"inline,omitempty" yaml:"inline,omitempty"`
	Format  PropFormat `json:"format,omitempty" yaml:"format,omitempty"`
	Default any        `json:"default,omitempty" yaml:"default,omitempty"`
}

// Slot returns the declared slot with the given name.
func (d *Definition) Slot(name string) (SlotDefinition, bool) {
	for _, s := range d.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotDefinition{}, false
}

// Prop returns the declared prop with the given name.
func (d *Definition) Prop(name string) (PropDefinition, bool) {
	for _, p := range d.Props {
		if p.Name == name {
			return p, true
		}
	}
	return PropDefinition{}, false
}

// SlotNames returns the declared slot names in declaration order.
func (d *Definition) SlotNames() []string {
	names := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		names[i] = s.Name
	}
	return names
}

// CanonicalNode is one node of the deterministic tree rebuilt from
// placement records. Nodes are values: there are no parent pointers, and the
// slots are listed in the definition's declared order.
type CanonicalNode struct {
	UUID        string
	ComponentID string
	Version     string
	PathKey     string
	Inputs      map[string]PropSource
	Slots       []CanonicalSlot
}

// CanonicalSlot holds the ordered children placed in one slot.
type CanonicalSlot struct {
	Name     string
	Children []CanonicalNode
}

// Children returns the children placed in the named slot.
func (n CanonicalNode) Children(slot string) []CanonicalNode {
	for _, s := range n.Slots {
		if s.Name == slot {
			return s.Children
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first in canonical order.
func (n CanonicalNode) Walk(fn func(CanonicalNode)) {
	fn(n)
	for _, s := range n.Slots {
		for _, c := range s.Children {
			c.Walk(fn)
		}
	}
}

// ResolvedProp is a prop value together with the cache metadata its
// resolution contributed.
type ResolvedProp struct {
	Value any
	Cache CacheMetadata
}

// HydratedNode is a canonical node with resolved props and filled slots.
type HydratedNode struct {
	Node       CanonicalNode
	Definition *Definition
	Props      map[string]ResolvedProp
	PropErrors []*PropResolutionError
	Slots      []HydratedSlot
}

// HydratedSlot holds either hydrated children or the definition's default
// content for an empty slot.
type HydratedSlot struct {
	Name           string
	Children       []HydratedNode
	DefaultContent string
	UsedDefault    bool
}
