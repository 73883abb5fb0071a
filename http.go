package pagetree

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/pthm/pagetree/lib/ctxlog"
)

// PreviewHeader is the request header that asks for a draft preview.
const PreviewHeader = "X-Pagetree-Preview"

// permanentMaxAge is the Cache-Control max-age sent for pages with no
// expiry (one year).
const permanentMaxAge = 365 * 24 * 60 * 60

// IsPreview returns true if the request asks for a draft preview, either via
// the X-Pagetree-Preview header or a "preview" query parameter.
//
//	page, err := engine.Run(ctx, records, pagetree.IsPreview(r))
func IsPreview(r *http.Request) bool {
	if v, err := strconv.ParseBool(r.Header.Get(PreviewHeader)); err == nil {
		return v
	}
	v, _ := strconv.ParseBool(r.URL.Query().Get("preview"))
	return v
}

// CacheHeaders writes HTTP caching headers for a cache triple.
//
// Previews and uncacheable triples get "no-store". Otherwise Cache-Control
// carries max-age, Cache-Tag lists the invalidation tags and
// X-Cache-Contexts the request dimensions the response varies by.
func CacheHeaders(h http.Header, c CacheMetadata, preview bool) {
	switch {
	case preview || c.MaxAge == 0:
		h.Set("Cache-Control", "no-store")
	case c.IsPermanent():
		h.Set("Cache-Control", "public, max-age="+strconv.Itoa(permanentMaxAge))
	default:
		h.Set("Cache-Control", "public, max-age="+strconv.Itoa(c.MaxAge))
	}
	if len(c.Tags) > 0 {
		h.Set("Cache-Tag", strings.Join(c.Tags, " "))
	}
	if len(c.Contexts) > 0 {
		h.Set("X-Cache-Contexts", strings.Join(c.Contexts, " "))
	}
}

// Render writes a page to the HTTP response as instrumented HTML.
//
// Sets Content-Type and the page's cache headers, then renders every root
// with Markup using the request's context.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    page, err := engine.Run(r.Context(), records, pagetree.IsPreview(r))
//	    if err != nil { ... }
//	    pagetree.Render(w, r, page, renderers)
//	}
func Render(w http.ResponseWriter, r *http.Request, page *Page, renderers Renderers) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	CacheHeaders(w.Header(), page.Cache(), page.Preview)
	for _, root := range page.Roots {
		if err := Markup(root, renderers).Render(r.Context(), w); err != nil {
			return err
		}
	}
	return nil
}

// RecordSource loads the placement records of the page a request addresses.
type RecordSource func(ctx context.Context, r *http.Request) ([]PlacementRecord, error)

// Handler returns an http.Handler that runs a pass per request and renders
// the result. Structural and definition errors answer 500 with no partial
// page.
func (e *Engine) Handler(src RecordSource, renderers Renderers) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := ctxlog.FromContext(ctx).With("path", r.URL.Path)

		records, err := src(ctx, r)
		if err != nil {
			logger.Error("load records", "error", err)
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}

		page, err := e.Run(ctx, records, IsPreview(r))
		if err != nil {
			logger.Error("render pass", "error", err)
			http.Error(w, "page could not be rendered", http.StatusInternalServerError)
			return
		}

		if err := Render(w, r, page, renderers); err != nil {
			logger.Error("write page", "error", err)
		}
	})
}
