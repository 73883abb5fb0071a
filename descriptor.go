package pagetree

// Descriptor is the render-ready form of one hydrated node. It is a tagged
// union: the concrete type is *DesignDescriptor, *BlockDescriptor or
// *CodeDescriptor, and Kind names which.
//
//	switch d := desc.(type) {
//	case *pagetree.CodeDescriptor:
//	    loadScript(d.ScriptURL)
//	case *pagetree.BlockDescriptor:
//	    renderBlock(d.PluginID, d.Settings)
//	}
type Descriptor interface {
	Kind() Kind
	Base() *DescriptorBase
}

// DescriptorBase carries what every kind shares.
type DescriptorBase struct {
	Type        Kind                  `json:"kind"`
	UUID        string                `json:"uuid"`
	ComponentID string                `json:"component_id"`
	Version     string                `json:"version"`
	PathKey     string                `json:"path_key"`
	Preview     bool                  `json:"preview"`
	Props       map[string]any        `json:"props"`
	Inline      map[string]InlineProp `json:"inline,omitempty"`
	Slots       []SlotDescriptor      `json:"slots,omitempty"`
	Markers     Markers               `json:"markers"`
	Cache       CacheMetadata         `json:"cache"`
	Errors      []string              `json:"errors,omitempty"`
}

// Kind returns the kind tag.
func (b *DescriptorBase) Kind() Kind {
	return b.Type
}

// Base returns the shared fields.
func (b *DescriptorBase) Base() *DescriptorBase {
	return b
}

// Slot returns the descriptor of the named slot.
func (b *DescriptorBase) Slot(name string) (SlotDescriptor, bool) {
	for _, s := range b.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotDescriptor{}, false
}

// SlotDescriptor is one declared slot with its instrumentation. Children is
// empty exactly when DefaultContent is used.
type SlotDescriptor struct {
	Name           string       `json:"name"`
	Markers        Markers      `json:"markers"`
	Children       []Descriptor `json:"children,omitempty"`
	DefaultContent string       `json:"default_content,omitempty"`
	UsedDefault    bool         `json:"used_default"`
}

// InlineProp is an inline-renderable prop value bracketed by markers.
// Markup is Markers.Start + Text + Markers.End.
type InlineProp struct {
	Markers Markers `json:"markers"`
	Text    string  `json:"text"`
	Markup  string  `json:"markup"`
}

// DesignDescriptor is a design component.
type DesignDescriptor struct {
	DescriptorBase
	Label string `json:"label,omitempty"`
}

// BlockDescriptor is a legacy block. Its props double as block settings.
type BlockDescriptor struct {
	DescriptorBase
	PluginID string         `json:"plugin_id"`
	Settings map[string]any `json:"settings"`
}

// CodeDescriptor is a user-authored code component.
type CodeDescriptor struct {
	DescriptorBase
	// ScriptURL points at the draft-serving locator in preview and at the
	// published script otherwise.
	ScriptURL string `json:"script_url"`
}

// Walk visits d and its slot children depth-first.
func Walk(d Descriptor, fn func(Descriptor)) {
	fn(d)
	for _, s := range d.Base().Slots {
		for _, c := range s.Children {
			Walk(c, fn)
		}
	}
}
