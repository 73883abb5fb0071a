package pagetree

import "context"

// testDefs returns the definitions shared by the package tests.
func testDefs() MapDefinitions {
	return MapDefinitions{
		"heading": {
			ID:      "heading",
			Version: "v1",
			Kind:    KindDesign,
			Label:   "Heading",
			Props: []PropDefinition{
				{Name: "text", Inline: true, Format: FormatText},
				{Name: "level", Default: 2},
			},
			Cache: PermanentCache("heading"),
		},
		"section": {
			ID:      "section",
			Version: "v3",
			Kind:    KindDesign,
			Slots: []SlotDefinition{
				{Name: "header"},
				{Name: "body", DefaultContent: "<p>Drop components here</p>"},
				{Name: "footer"},
			},
			Cache: CacheMetadata{Tags: []string{"section"}, MaxAge: 600},
		},
		"rich": {
			ID:      "rich",
			Version: "v1",
			Kind:    KindDesign,
			Props: []PropDefinition{
				{Name: "body", Inline: true, Format: FormatHTML},
			},
			Cache: PermanentCache(),
		},
		"legacy": {
			ID:      "legacy",
			Version: "7",
			Kind:    KindBlock,
			Props:   []PropDefinition{{Name: "title", Default: "Untitled"}},
			Cache:   CacheMetadata{Contexts: []string{"user.roles"}, MaxAge: 60},
		},
		"widget": {
			ID:      "widget",
			Version: "v2",
			Kind:    KindCode,
			Slots:   []SlotDefinition{{Name: "fallback", DefaultContent: "<noscript>JS required</noscript>"}},
			Cache:   PermanentCache("widget"),
		},
	}
}

// rec builds a placement record. parent and slot may be empty for roots.
func rec(uuid, component, parent, slot string, inputs map[string]PropSource) PlacementRecord {
	return PlacementRecord{UUID: uuid, ComponentID: component, ParentUUID: parent, Slot: slot, Inputs: inputs}
}

// countingDefs wraps a resolver and counts lookups.
type countingDefs struct {
	next  DefinitionResolver
	calls int
}

func (c *countingDefs) ResolveDefinition(ctx context.Context, id, version string) (*Definition, error) {
	c.calls++
	return c.next.ResolveDefinition(ctx, id, version)
}

// uuids lists canonical nodes' uuids depth-first.
func uuids(roots []CanonicalNode) []string {
	var out []string
	for _, r := range roots {
		r.Walk(func(n CanonicalNode) { out = append(out, n.UUID) })
	}
	return out
}
