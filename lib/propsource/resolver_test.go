package propsource

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/pthm/pagetree"
)

func newResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	base := []Option{
		WithSource("site", map[string]any{
			"title": "Docs",
			"langs": []any{"en", "fr"},
			"nav":   map[string]any{"items": 3},
		}, pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300}),
		WithSource("news", map[string]any{"headline": "  Launch  "},
			pagetree.CacheMetadata{Tags: []string{"news"}, Contexts: []string{"url"}, MaxAge: 30}),
	}
	r, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestResolveStatic(t *testing.T) {
	r := newResolver(t)
	rp, err := r.ResolveProp(context.Background(), pagetree.Static(42), pagetree.PropContext{UUID: "A", Prop: "n"})
	if err != nil {
		t.Fatalf("ResolveProp() error = %v", err)
	}
	if rp.Value != 42 {
		t.Errorf("Value = %v, want 42", rp.Value)
	}
	if !rp.Cache.IsPermanent() || len(rp.Cache.Tags) != 0 {
		t.Errorf("Cache = %+v, want permanent without tags", rp.Cache)
	}
}

func TestResolveExpression(t *testing.T) {
	r := newResolver(t)
	pc := pagetree.PropContext{UUID: "A", ComponentID: "heading", Prop: "text"}

	tests := []struct {
		name  string
		expr  string
		want  any
		cache pagetree.CacheMetadata
	}{
		{
			name:  "attribute",
			expr:  "site.title",
			want:  "Docs",
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
		{
			name:  "function",
			expr:  "upper(site.title)",
			want:  "DOCS",
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
		{
			name:  "template over two sources",
			expr:  `"${site.title}: ${trimspace(news.headline)}"`,
			want:  "Docs: Launch",
			cache: pagetree.CacheMetadata{Tags: []string{"news", "site"}, Contexts: []string{"url"}, MaxAge: 30},
		},
		{
			name:  "join",
			expr:  `join(", ", site.langs)`,
			want:  "en, fr",
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
		{
			name:  "whole number",
			expr:  "site.nav.items + 1",
			want:  int64(4),
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
		{
			name:  "fraction",
			expr:  "site.nav.items / 2",
			want:  1.5,
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
		{
			name:  "coalesce",
			expr:  `coalesce(null, "fallback")`,
			want:  "fallback",
			cache: pagetree.PermanentCache(),
		},
		{
			name:  "self and preview only",
			expr:  `preview ? "draft" : self.uuid`,
			want:  "A",
			cache: pagetree.PermanentCache(),
		},
		{
			name:  "tuple",
			expr:  "site.langs",
			want:  []any{"en", "fr"},
			cache: pagetree.CacheMetadata{Tags: []string{"site"}, MaxAge: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := r.ResolveProp(context.Background(), pagetree.Expr(tt.expr), pc)
			if err != nil {
				t.Fatalf("ResolveProp(%s) error = %v", tt.expr, err)
			}
			if diff := cmp.Diff(tt.want, rp.Value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.cache, rp.Cache); diff != "" {
				t.Errorf("cache mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolvePreview(t *testing.T) {
	r := newResolver(t)
	pc := pagetree.PropContext{UUID: "A", Prop: "mode", Preview: true}

	rp, err := r.ResolveProp(context.Background(), pagetree.Expr(`preview ? "draft" : "live"`), pc)
	if err != nil {
		t.Fatalf("ResolveProp() error = %v", err)
	}
	if rp.Value != "draft" {
		t.Errorf("Value = %v, want draft", rp.Value)
	}
}

func TestResolveErrors(t *testing.T) {
	r := newResolver(t)
	pc := pagetree.PropContext{UUID: "A", Prop: "text"}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"syntax", "site.", "parse"},
		{"unknown source", "cms.title", "evaluate"},
		{"missing attribute", "site.subtitle", "evaluate"},
		{"unknown function", "shout(site.title)", "evaluate"},
		{"type mismatch", "upper(site.nav)", "evaluate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveProp(context.Background(), pagetree.Expr(tt.expr), pc)
			if err == nil {
				t.Fatalf("ResolveProp(%s) succeeded, want error", tt.expr)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestResolveCancelled(t *testing.T) {
	r := newResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.ResolveProp(ctx, pagetree.Expr("site.title"), pagetree.PropContext{}); err == nil {
		t.Error("ResolveProp() with cancelled context succeeded")
	}
	// Static values need no work and still resolve.
	if _, err := r.ResolveProp(ctx, pagetree.Static("x"), pagetree.PropContext{}); err != nil {
		t.Errorf("static ResolveProp() error = %v", err)
	}
}

func TestWithFunction(t *testing.T) {
	shout := function.New(&function.Spec{
		Params: []function.Parameter{{Name: "s", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(strings.ToUpper(args[0].AsString()) + "!"), nil
		},
	})
	r := newResolver(t, WithFunction("shout", shout))

	rp, err := r.ResolveProp(context.Background(), pagetree.Expr("shout(site.title)"), pagetree.PropContext{})
	if err != nil {
		t.Fatalf("ResolveProp() error = %v", err)
	}
	if rp.Value != "DOCS!" {
		t.Errorf("Value = %v, want DOCS!", rp.Value)
	}
}

func TestSetSource(t *testing.T) {
	r := newResolver(t)

	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"valid", "catalog", false},
		{"replaces", "site", false},
		{"reserved preview", "preview", true},
		{"reserved self", "self", true},
		{"not an identifier", "my source", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetSource(tt.source, map[string]any{"title": "New"}, pagetree.PermanentCache())
			if (err != nil) != tt.wantErr {
				t.Errorf("SetSource(%q) error = %v, wantErr %v", tt.source, err, tt.wantErr)
			}
		})
	}

	rp, err := r.ResolveProp(context.Background(), pagetree.Expr("site.title"), pagetree.PropContext{})
	if err != nil || rp.Value != "New" {
		t.Errorf("replaced source = %v, %v; want New", rp.Value, err)
	}
	if diff := cmp.Diff([]string{"catalog", "news", "site"}, r.Sources()); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverAsEngineCollaborator(t *testing.T) {
	r := newResolver(t)
	defs := pagetree.MapDefinitions{
		"heading": {ID: "heading", Version: "v1", Kind: pagetree.KindDesign,
			Props: []pagetree.PropDefinition{{Name: "text", Inline: true}},
			Cache: pagetree.PermanentCache("heading")},
	}
	records := []pagetree.PlacementRecord{{
		UUID: "A", ComponentID: "heading",
		Inputs: map[string]pagetree.PropSource{"text": pagetree.Expr("site.title")},
	}}

	page, err := pagetree.New(defs, r).Run(context.Background(), records, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := pagetree.CacheMetadata{Tags: []string{"heading", "site"}, MaxAge: 300}
	if diff := cmp.Diff(want, page.Cache()); diff != "" {
		t.Errorf("page cache mismatch (-want +got):\n%s", diff)
	}
	if got := page.Roots[0].Base().Inline["text"].Text; got != "Docs" {
		t.Errorf("inline text = %q, want Docs", got)
	}
}
