package pagetree

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/pthm/pagetree/lib/ctxlog"
)

// slotKey identifies one (parent, slot) group of children.
type slotKey struct {
	parent string
	slot   string
}

// forest is the flat partition of a record snapshot: roots plus a
// (parent, slot) multimap, both in first-appearance order.
type forest struct {
	records []PlacementRecord
	index   map[string]int
	roots   []int
	groups  map[slotKey][]int
	slots   map[string][]string // parent uuid -> slot names in first-appearance order
}

// partition validates record-local invariants and groups the records. It
// never looks at definitions.
func partition(records []PlacementRecord) (*forest, error) {
	f := &forest{
		records: records,
		index:   make(map[string]int, len(records)),
		groups:  make(map[slotKey][]int),
		slots:   make(map[string][]string),
	}

	for i, r := range records {
		if r.UUID == "" {
			return nil, &StructureError{Reason: ReasonMissingUUID, UUID: "#" + strconv.Itoa(i)}
		}
		if _, dup := f.index[r.UUID]; dup {
			return nil, &StructureError{Reason: ReasonDuplicateUUID, UUID: r.UUID}
		}
		f.index[r.UUID] = i
	}

	for i, r := range records {
		if r.IsRoot() {
			if r.Slot != "" {
				return nil, &StructureError{Reason: ReasonOrphanSlot, UUID: r.UUID, Ref: r.Slot}
			}
			f.roots = append(f.roots, i)
			continue
		}
		if r.Slot == "" {
			return nil, &StructureError{Reason: ReasonMissingSlot, UUID: r.UUID, Ref: r.ParentUUID}
		}
		if _, ok := f.index[r.ParentUUID]; !ok {
			return nil, &StructureError{Reason: ReasonUnknownParent, UUID: r.UUID, Ref: r.ParentUUID}
		}
		if r.ParentUUID == r.UUID {
			return nil, &StructureError{Reason: ReasonCycle, UUID: r.UUID, Ref: r.ParentUUID}
		}

		key := slotKey{parent: r.ParentUUID, slot: r.Slot}
		if _, seen := f.groups[key]; !seen {
			f.slots[r.ParentUUID] = append(f.slots[r.ParentUUID], r.Slot)
		}
		f.groups[key] = append(f.groups[key], i)
	}

	return f, nil
}

type linearizer struct {
	ctx     context.Context
	f       *forest
	defs    DefinitionResolver
	opts    *options
	visited map[string]bool
	diags   []error
}

// Linearize rebuilds the canonical forest described by records.
//
// Roots, and the children of each (parent, slot) pair, keep the relative
// order in which they first appear in records; where a sibling or
// descendant was inserted in the flat slice does not matter. Each node's
// slots are enumerated in its resolved definition's declared order and every
// node gets a path key: "0", "1", ... for roots and
// parentKey + ":" + slot + ":" + index below them.
//
// Any *StructureError aborts with no tree. A definition that cannot be
// resolved yields a *DefinitionLookupError, which is fatal unless
// WithSkipBrokenSubtrees is set; skipped subtrees are reported in the
// returned diagnostics.
func Linearize(ctx context.Context, records []PlacementRecord, defs DefinitionResolver, opts ...Option) ([]CanonicalNode, []error, error) {
	logger := ctxlog.FromContext(ctx)

	f, err := partition(records)
	if err != nil {
		return nil, nil, err
	}

	l := &linearizer{
		ctx:     ctx,
		f:       f,
		defs:    defs,
		opts:    buildOptions(opts),
		visited: make(map[string]bool, len(records)),
	}

	roots := make([]CanonicalNode, 0, len(f.roots))
	for _, i := range f.roots {
		node, ok, err := l.build(i, strconv.Itoa(len(roots)))
		if err != nil {
			return nil, nil, err
		}
		if ok {
			roots = append(roots, node)
		}
	}

	if err := l.checkReached(); err != nil {
		return nil, nil, err
	}

	logger.Debug("linearize: forest built", "records", len(records), "roots", len(roots), "skipped", len(l.diags))
	return roots, l.diags, nil
}

// build returns the canonical node for records[i]. ok is false when the
// subtree was skipped.
func (l *linearizer) build(i int, pathKey string) (CanonicalNode, bool, error) {
	r := l.f.records[i]
	if l.visited[r.UUID] {
		return CanonicalNode{}, false, &StructureError{Reason: ReasonCycle, UUID: r.UUID, Ref: r.ParentUUID}
	}
	l.visited[r.UUID] = true

	def, err := l.defs.ResolveDefinition(l.ctx, r.ComponentID, r.Version)
	if err == nil && def == nil {
		err = fmt.Errorf("no definition returned")
	}
	if err != nil {
		lookupErr := &DefinitionLookupError{UUID: r.UUID, ComponentID: r.ComponentID, Version: r.Version, Err: err}
		if !l.opts.skipBroken {
			return CanonicalNode{}, false, lookupErr
		}
		ctxlog.FromContext(l.ctx).Warn("linearize: skipping subtree", "uuid", r.UUID, "error", lookupErr)
		l.diags = append(l.diags, lookupErr)
		l.consume(r.UUID)
		return CanonicalNode{}, false, nil
	}

	for _, slot := range l.f.slots[r.UUID] {
		if _, declared := def.Slot(slot); !declared {
			first := l.f.records[l.f.groups[slotKey{parent: r.UUID, slot: slot}][0]]
			return CanonicalNode{}, false, &StructureError{Reason: ReasonUndeclaredSlot, UUID: first.UUID, Ref: slot}
		}
	}

	version := def.Version
	if version == "" {
		version = r.Version
	}
	node := CanonicalNode{
		UUID:        r.UUID,
		ComponentID: r.ComponentID,
		Version:     version,
		PathKey:     pathKey,
		Inputs:      maps.Clone(r.Inputs),
		Slots:       make([]CanonicalSlot, 0, len(def.Slots)),
	}

	for _, slot := range def.Slots {
		cs := CanonicalSlot{Name: slot.Name}
		for _, ci := range l.f.groups[slotKey{parent: r.UUID, slot: slot.Name}] {
			childKey := pathKey + ":" + slot.Name + ":" + strconv.Itoa(len(cs.Children))
			child, ok, err := l.build(ci, childKey)
			if err != nil {
				return CanonicalNode{}, false, err
			}
			if ok {
				cs.Children = append(cs.Children, child)
			}
		}
		node.Slots = append(node.Slots, cs)
	}

	return node, true, nil
}

// consume marks every descendant of a skipped node as reached so they are
// not mistaken for members of a cycle.
func (l *linearizer) consume(uuid string) {
	for _, slot := range l.f.slots[uuid] {
		for _, ci := range l.f.groups[slotKey{parent: uuid, slot: slot}] {
			child := l.f.records[ci].UUID
			if l.visited[child] {
				continue
			}
			l.visited[child] = true
			l.consume(child)
		}
	}
}

// checkReached fails when some record was never reached from a root. With
// every parent known to exist, such a record hangs off a cycle; walking up
// its parent chain names a uuid on that cycle.
func (l *linearizer) checkReached() error {
	for _, r := range l.f.records {
		if l.visited[r.UUID] {
			continue
		}
		seen := map[string]bool{}
		cur := r
		for !seen[cur.UUID] {
			seen[cur.UUID] = true
			cur = l.f.records[l.f.index[cur.ParentUUID]]
		}
		return &StructureError{Reason: ReasonCycle, UUID: cur.UUID, Ref: cur.ParentUUID}
	}
	return nil
}
