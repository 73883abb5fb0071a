package pagetree

// Page is the output of one render pass.
type Page struct {
	Preview bool
	Roots   []Descriptor

	// Diagnostics lists recoverable problems: prop resolution errors and
	// definition lookups of skipped subtrees.
	Diagnostics []error
}

// RootCache returns the cache triple of the i-th root, for the HTTP caching
// layer.
func (p *Page) RootCache(i int) CacheMetadata {
	return p.Roots[i].Base().Cache
}

// Cache returns the cache triple of the whole page.
func (p *Page) Cache() CacheMetadata {
	c := PermanentCache()
	for _, r := range p.Roots {
		c = c.Merge(r.Base().Cache)
	}
	return c
}

// HasDiagnostics reports whether the pass recorded recoverable problems.
func (p *Page) HasDiagnostics() bool {
	return len(p.Diagnostics) > 0
}

// PropErrors returns the prop resolution errors of the pass.
func (p *Page) PropErrors() []*PropResolutionError {
	var out []*PropResolutionError
	for _, d := range p.Diagnostics {
		if pe, ok := d.(*PropResolutionError); ok {
			out = append(out, pe)
		}
	}
	return out
}

// Find returns the descriptor with the given uuid.
func (p *Page) Find(uuid string) (Descriptor, bool) {
	var found Descriptor
	for _, r := range p.Roots {
		Walk(r, func(d Descriptor) {
			if found == nil && d.Base().UUID == uuid {
				found = d
			}
		})
	}
	return found, found != nil
}
