package pagetree

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func pageRecords() []PlacementRecord {
	return []PlacementRecord{
		rec("body", "heading", "S", "body", map[string]PropSource{"text": Static("Welcome")}),
		rec("S", "section", "", "", nil),
		rec("L", "legacy", "", "", map[string]PropSource{"title": Static("Sidebar")}),
		rec("W", "widget", "S", "footer", nil),
	}
}

func TestEngineRun(t *testing.T) {
	engine := New(testDefs(), nil)

	page, err := engine.Run(context.Background(), pageRecords(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(page.Roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(page.Roots))
	}
	if page.Roots[0].Base().UUID != "S" || page.Roots[1].Base().UUID != "L" {
		t.Errorf("roots = %s, %s; want S, L", page.Roots[0].Base().UUID, page.Roots[1].Base().UUID)
	}
	if page.HasDiagnostics() {
		t.Errorf("diagnostics = %v, want none", page.Diagnostics)
	}

	want := CacheMetadata{
		Tags:     []string{"heading", "section", "widget"},
		Contexts: []string{"user.roles"},
		MaxAge:   60,
	}
	if diff := cmp.Diff(want, page.Cache()); diff != "" {
		t.Errorf("page cache mismatch (-want +got):\n%s", diff)
	}
	if got := page.RootCache(0).MaxAge; got != 600 {
		t.Errorf("root 0 max-age = %d, want 600", got)
	}

	w, ok := page.Find("W")
	if !ok {
		t.Fatal("Find(W) = false")
	}
	if w.Base().PathKey != "0:footer:0" {
		t.Errorf("W PathKey = %q, want 0:footer:0", w.Base().PathKey)
	}
	if _, ok := page.Find("nope"); ok {
		t.Error("Find(nope) = true")
	}
}

func TestEngineRunStructureError(t *testing.T) {
	engine := New(testDefs(), nil)
	records := append(pageRecords(), rec("orphan", "heading", "ghost", "body", nil))

	page, err := engine.Run(context.Background(), records, false)
	if page != nil {
		t.Error("got a page despite a structural error")
	}
	if !IsStructureError(err) || ErrorUUID(err) != "orphan" {
		t.Errorf("error = %v, want StructureError naming orphan", err)
	}
}

func TestEngineRunDiagnostics(t *testing.T) {
	records := append(pageRecords(),
		rec("dyn", "legacy", "S", "header", map[string]PropSource{"title": Expr("cms.title")}),
		rec("M", "missing", "", "", nil),
	)

	engine := New(testDefs(), nil, WithSkipBrokenSubtrees())
	page, err := engine.Run(context.Background(), records, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(page.Roots) != 2 {
		t.Errorf("got %d roots, want M skipped", len(page.Roots))
	}
	if len(page.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v, want lookup + prop error", page.Diagnostics)
	}
	if !IsDefinitionLookupError(page.Diagnostics[0]) {
		t.Errorf("diagnostic 0 = %v, want DefinitionLookupError", page.Diagnostics[0])
	}
	pes := page.PropErrors()
	if len(pes) != 1 || pes[0].UUID != "dyn" {
		t.Errorf("PropErrors() = %v, want dyn/title", pes)
	}
}

func TestEngineRunEscalate(t *testing.T) {
	records := append(pageRecords(),
		rec("dyn", "legacy", "S", "header", map[string]PropSource{"title": Expr("cms.title")}),
	)

	engine := New(testDefs(), nil, WithPropErrorPolicy(PropErrorsEscalate))
	page, err := engine.Run(context.Background(), records, false)
	if page != nil || !IsPropResolutionError(err) {
		t.Errorf("Run() = %v, %v; want escalated prop error", page, err)
	}
}

func TestEngineRunOrderIndependent(t *testing.T) {
	engine := New(testDefs(), nil)
	a := pageRecords()
	b := []PlacementRecord{a[1], a[3], a[0], a[2]}

	pa, err := engine.Run(context.Background(), a, true)
	if err != nil {
		t.Fatalf("Run(a) error = %v", err)
	}
	pb, err := engine.Run(context.Background(), b, true)
	if err != nil {
		t.Fatalf("Run(b) error = %v", err)
	}
	if diff := cmp.Diff(pa.Roots, pb.Roots); diff != "" {
		t.Errorf("pages differ (-a +b):\n%s", diff)
	}
}

func TestEngineConcurrentRuns(t *testing.T) {
	engine := New(testDefs(), &RecordingPropResolver{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(preview bool) {
			defer wg.Done()
			page, err := engine.Run(context.Background(), pageRecords(), preview)
			if err != nil {
				errs <- err
				return
			}
			if got := page.Roots[0].Base().Props[PreviewProp]; got != preview {
				errs <- fmt.Errorf("%s = %v, want %v", PreviewProp, got, preview)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
