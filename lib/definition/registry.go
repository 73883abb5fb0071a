// Package definition provides a versioned, in-memory registry of component
// definitions that satisfies pagetree.DefinitionResolver.
package definition

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/pagetree"
)

var (
	// ErrNotFound is returned when no definition matches an id or version.
	ErrNotFound = errors.New("definition: not found")

	// ErrDuplicate is returned when an (id, version) pair is added twice.
	ErrDuplicate = errors.New("definition: duplicate version")

	// ErrInvalid is returned for definitions that fail validation.
	ErrInvalid = errors.New("definition: invalid")
)

// entry holds every version of one component id.
type entry struct {
	versions map[string]*pagetree.Definition
	order    []string // insertion order
	active   string
}

// Registry is a thread-safe store of component definitions.
//
// Each id may carry several versions. Requests without a version resolve to
// the id's active version, which is the first one added until Activate
// moves it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add validates and registers definitions. A definition without a version
// gets a content-derived one. Cache is stored as given, so a zero Cache is
// uncacheable; use pagetree.PermanentCache for content that never expires.
// Slot default content is normalized to well-formed markup.
//
// Add is all or nothing: an invalid definition or a repeated (id, version),
// whether already registered or repeated within defs, registers none of
// them.
//
// Definitions are stored as copies; later changes to the arguments are not
// seen by the registry.
func (r *Registry) Add(defs ...*pagetree.Definition) error {
	prepared := make([]*pagetree.Definition, 0, len(defs))
	batch := make(map[[2]string]bool, len(defs))
	for _, def := range defs {
		d, err := prepare(def)
		if err != nil {
			return err
		}
		key := [2]string{d.ID, d.Version}
		if batch[key] {
			return fmt.Errorf("%w: %s@%s", ErrDuplicate, d.ID, d.Version)
		}
		batch[key] = true
		prepared = append(prepared, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range prepared {
		if e, ok := r.entries[d.ID]; ok {
			if _, exists := e.versions[d.Version]; exists {
				return fmt.Errorf("%w: %s@%s", ErrDuplicate, d.ID, d.Version)
			}
		}
	}
	for _, d := range prepared {
		e, ok := r.entries[d.ID]
		if !ok {
			e = &entry{versions: make(map[string]*pagetree.Definition), active: d.Version}
			r.entries[d.ID] = e
		}
		e.versions[d.Version] = d
		e.order = append(e.order, d.Version)
	}
	return nil
}

// MustAdd is like Add but panics on error. Use it for definitions compiled
// into the program.
func (r *Registry) MustAdd(defs ...*pagetree.Definition) {
	if err := r.Add(defs...); err != nil {
		panic(err)
	}
}

// Activate makes version the one served for versionless requests.
func (r *Registry) Activate(id, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, ok := e.versions[version]; !ok {
		return fmt.Errorf("%w: %s@%s", ErrNotFound, id, version)
	}
	e.active = version
	return nil
}

// Active returns the active version of id.
func (r *Registry) Active(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.active, true
}

// Versions returns the versions of id in the order they were added.
func (r *Registry) Versions(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[id]; ok {
		return slices.Clone(e.order)
	}
	return nil
}

// IDs returns every registered component id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ResolveDefinition implements pagetree.DefinitionResolver. An empty
// version selects the active one.
func (r *Registry) ResolveDefinition(_ context.Context, id, version string) (*pagetree.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if version == "" {
		version = e.active
	}
	d, ok := e.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, id, version)
	}
	return d, nil
}

// prepare validates def and returns the copy that gets stored.
func prepare(def *pagetree.Definition) (*pagetree.Definition, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalid)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if !def.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s: %w %q", ErrInvalid, def.ID, pagetree.ErrUnknownKind, def.Kind)
	}

	d := *def
	d.Slots = slices.Clone(def.Slots)
	d.Props = slices.Clone(def.Props)

	seen := make(map[string]bool, len(d.Slots))
	for i, s := range d.Slots {
		if s.Name == "" || seen[s.Name] {
			return nil, fmt.Errorf("%w: %s: slot %q is empty or repeated", ErrInvalid, d.ID, s.Name)
		}
		seen[s.Name] = true
		content, err := normalizeMarkup(s.DefaultContent)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: slot %q default content: %v", ErrInvalid, d.ID, s.Name, err)
		}
		d.Slots[i].DefaultContent = content
	}

	clear(seen)
	for i, p := range d.Props {
		if p.Name == "" || seen[p.Name] {
			return nil, fmt.Errorf("%w: %s: prop %q is empty or repeated", ErrInvalid, d.ID, p.Name)
		}
		if p.Name == pagetree.PreviewProp {
			return nil, fmt.Errorf("%w: %s: prop name %q is reserved", ErrInvalid, d.ID, p.Name)
		}
		seen[p.Name] = true
		switch p.Format {
		case "":
			d.Props[i].Format = pagetree.FormatText
		case pagetree.FormatText, pagetree.FormatHTML:
		default:
			return nil, fmt.Errorf("%w: %s: prop %q has unknown format %q", ErrInvalid, d.ID, p.Name, p.Format)
		}
	}

	if d.Version == "" {
		v, err := contentHash(&d)
		if err != nil {
			return nil, fmt.Errorf("definition: hash %s: %w", d.ID, err)
		}
		d.Version = v
	}
	return &d, nil
}

// contentHash derives a version from the definition's content, so the same
// definition registered twice gets the same version.
func contentHash(d *pagetree.Definition) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(d); err != nil {
		return "", err
	}
	h := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(h[:4]), nil // 8 hex chars
}

// normalizeMarkup parses an HTML fragment and renders it back, closing
// unclosed elements so default content cannot swallow the markers that
// follow it. The parse context follows the leading element, so table rows
// and list options survive instead of being dropped by body-context rules.
func normalizeMarkup(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return s, nil
	}
	ctx := fragmentContext(s)
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     ctx.String(),
		DataAtom: ctx,
	})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// contextFor maps elements that are only valid inside a particular parent to
// that parent.
var contextFor = map[atom.Atom]atom.Atom{
	atom.Tr:       atom.Tbody,
	atom.Td:       atom.Tr,
	atom.Th:       atom.Tr,
	atom.Tbody:    atom.Table,
	atom.Thead:    atom.Table,
	atom.Tfoot:    atom.Table,
	atom.Caption:  atom.Table,
	atom.Colgroup: atom.Table,
	atom.Col:      atom.Colgroup,
	atom.Option:   atom.Select,
	atom.Optgroup: atom.Select,
}

// fragmentContext returns the element a fragment should be parsed inside,
// judged by its first start tag.
func fragmentContext(s string) atom.Atom {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return atom.Body
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return atom.Body
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if ctx, ok := contextFor[atom.Lookup(name)]; ok {
				return ctx
			}
			return atom.Body
		case html.EndTagToken:
			return atom.Body
		}
	}
}
