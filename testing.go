package pagetree

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// TestResult holds the result of rendering a page for testing.
//
// Provides convenience methods for asserting on HTML content, headers and
// markers.
type TestResult struct {
	Page    *Page
	HTML    string
	Headers http.Header
}

// TestRender runs a pass and renders it with Markup, bypassing HTTP.
//
//	result, err := pagetree.TestRender(engine, records, false, nil)
//	if !result.HTMLContains("hello") {
//	    t.Fatal("missing expected content")
//	}
func TestRender(e *Engine, records []PlacementRecord, preview bool, renderers Renderers) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), e, records, preview, renderers)
}

// TestRenderWithContext is TestRender with a caller-supplied context, for
// resolvers that read request-scoped values.
func TestRenderWithContext(ctx context.Context, e *Engine, records []PlacementRecord, preview bool, renderers Renderers) (*TestResult, error) {
	page, err := e.Run(ctx, records, preview)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, root := range page.Roots {
		if err := Markup(root, renderers).Render(ctx, &buf); err != nil {
			return nil, err
		}
	}

	headers := make(http.Header)
	CacheHeaders(headers, page.Cache(), preview)
	return &TestResult{Page: page, HTML: buf.String(), Headers: headers}, nil
}

// TestServe runs a page through Engine.Handler with a recorded response.
//
//	result, status := pagetree.TestServe(engine, records, "/?preview=1", nil)
func TestServe(e *Engine, records []PlacementRecord, target string, renderers Renderers) (*TestResult, int) {
	src := func(context.Context, *http.Request) ([]PlacementRecord, error) { return records, nil }
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.Handler(src, renderers).ServeHTTP(rec, req)
	return &TestResult{HTML: rec.Body.String(), Headers: rec.Header()}, rec.Code
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLInOrder checks that the substrings appear in the HTML in the given
// order without overlapping.
func (r *TestResult) HTMLInOrder(substrs ...string) bool {
	rest := r.HTML
	for _, s := range substrs {
		i := strings.Index(rest, s)
		if i < 0 {
			return false
		}
		rest = rest[i+len(s):]
	}
	return true
}

// Wrapped returns the markup between a node's start and end markers.
func (r *TestResult) Wrapped(uuid string) (string, bool) {
	m := NodeMarkers(uuid)
	start := strings.Index(r.HTML, m.Start)
	if start < 0 {
		return "", false
	}
	start += len(m.Start)
	end := strings.Index(r.HTML[start:], m.End)
	if end < 0 {
		return "", false
	}
	return r.HTML[start : start+end], true
}

// Header returns a response header value.
func (r *TestResult) Header(key string) string {
	return r.Headers.Get(key)
}

// MapDefinitions is an in-memory DefinitionResolver keyed by component id.
// A requested version must match the definition's version unless it is
// empty. Useful for tests:
//
//	defs := pagetree.MapDefinitions{
//	    "card": {ID: "card", Kind: pagetree.KindDesign, Slots: ...},
//	}
type MapDefinitions map[string]*Definition

// ResolveDefinition implements DefinitionResolver.
func (m MapDefinitions) ResolveDefinition(_ context.Context, componentID, version string) (*Definition, error) {
	def, ok := m[componentID]
	if !ok {
		return nil, fmt.Errorf("unknown component %q", componentID)
	}
	if version != "" && def.Version != "" && version != def.Version {
		return nil, fmt.Errorf("component %q has no version %q", componentID, version)
	}
	return def, nil
}

// RecordingPropResolver wraps a PropResolver and records every call in
// order. Safe for concurrent use.
//
//	rec := &pagetree.RecordingPropResolver{Next: pagetree.StaticProps}
//	engine := pagetree.New(defs, rec)
//	...
//	calls := rec.Calls()
type RecordingPropResolver struct {
	Next PropResolver

	// Fail makes resolution of the named "uuid/prop" pairs fail.
	Fail map[string]error

	mu    sync.Mutex
	calls []PropContext
}

// ResolveProp implements PropResolver.
func (r *RecordingPropResolver) ResolveProp(ctx context.Context, src PropSource, pc PropContext) (ResolvedProp, error) {
	r.mu.Lock()
	r.calls = append(r.calls, pc)
	r.mu.Unlock()

	if err, ok := r.Fail[pc.UUID+"/"+pc.Prop]; ok {
		return ResolvedProp{}, err
	}
	next := r.Next
	if next == nil {
		next = StaticProps
	}
	return next.ResolveProp(ctx, src, pc)
}

// Calls returns the recorded calls.
func (r *RecordingPropResolver) Calls() []PropContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PropContext(nil), r.calls...)
}

// Reset clears recorded calls.
func (r *RecordingPropResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
